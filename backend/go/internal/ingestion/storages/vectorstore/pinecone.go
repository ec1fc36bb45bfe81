package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"RepoChat/backend/go/internal/config"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/schema"
	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// pineconeControlPlane is the part of *pinecone.Client used to find the index host.
type pineconeControlPlane interface {
	DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error)
}

// pineconeConn is the part of *pinecone.IndexConnection the index uses.
type pineconeConn interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	Close() error
}

// PineconeIndex upserts into a pre-provisioned Pinecone index through the
// official SDK. The data plane host is resolved once from the control plane
// unless it is configured; a failed lookup is retried on the next call.
type PineconeIndex struct {
	cfg     config.PineconeConfig
	control pineconeControlPlane
	connect func(host string) (pineconeConn, error)

	mu   sync.Mutex
	conn pineconeConn
}

// NewPineconeIndex creates a Pinecone index client. No request is made until
// the first Upsert.
func NewPineconeIndex(cfg config.PineconeConfig) (*PineconeIndex, error) {
	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.ControllerURL != "" {
		params.Host = cfg.ControllerURL
	}
	pc, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}
	connect := func(host string) (pineconeConn, error) {
		return pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: cfg.Namespace})
	}
	return newPineconeIndex(cfg, pc, connect), nil
}

func newPineconeIndex(cfg config.PineconeConfig, control pineconeControlPlane, connect func(string) (pineconeConn, error)) *PineconeIndex {
	return &PineconeIndex{cfg: cfg, control: control, connect: connect}
}

var _ interfaces.VectorIndex = (*PineconeIndex)(nil)

func (p *PineconeIndex) Name() string { return p.cfg.IndexName }

func (p *PineconeIndex) connection(ctx context.Context) (pineconeConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn, nil
	}

	host := p.cfg.Host
	if host == "" {
		desc, err := p.control.DescribeIndex(ctx, p.cfg.IndexName)
		if err != nil {
			return nil, fmt.Errorf("describe index %s: %w", p.cfg.IndexName, err)
		}
		if desc == nil || desc.Host == "" {
			return nil, fmt.Errorf("describe index %s: no host in response", p.cfg.IndexName)
		}
		host = desc.Host
	}

	conn, err := p.connect(normalizeHost(host))
	if err != nil {
		return nil, fmt.Errorf("connect to index %s: %w", p.cfg.IndexName, err)
	}
	p.conn = conn
	return conn, nil
}

// normalizeHost strips the scheme and trailing slash; the SDK dials the bare host.
func normalizeHost(h string) string {
	h = strings.TrimRight(strings.TrimSpace(h), "/")
	h = strings.TrimPrefix(h, "https://")
	return strings.TrimPrefix(h, "http://")
}

// Upsert writes records in a single data plane call.
func (p *PineconeIndex) Upsert(ctx context.Context, records []schema.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	conn, err := p.connection(ctx)
	if err != nil {
		return err
	}

	vectors := make([]*pinecone.Vector, len(records))
	for i, r := range records {
		meta := make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		md, err := structpb.NewStruct(meta)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", r.ID, err)
		}
		vectors[i] = &pinecone.Vector{Id: r.ID, Values: r.Values, Metadata: md}
	}

	n, err := conn.UpsertVectors(ctx, vectors)
	if err != nil {
		return err
	}
	if int(n) != len(records) {
		return fmt.Errorf("pinecone acknowledged %d of %d vectors", n, len(records))
	}
	return nil
}

// Close closes the data plane connection, if one was opened.
func (p *PineconeIndex) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
