// Package service ties documents, schema, snapshots and archive storage
// together behind an instrumented facade.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"modelcore/internal/blob"
	"modelcore/internal/snapshot"
	"modelcore/pkg/model"
	"modelcore/pkg/xdoc"
)

// Service manages named documents wrapped by one schema and exposes the
// persistence and export operations around them. All operations are safe
// for concurrent use; mutations of the documents themselves are not and
// belong to a single goroutine per document.
type Service struct {
	schema    *model.Schema
	logger    model.Logger
	metrics   MetricsRecorder
	snapshots snapshot.Store
	blobs     blob.Store
	clock     func() time.Time

	mu   sync.RWMutex
	docs map[string]*xdoc.Document
}

type options struct {
	logger    model.Logger
	metrics   MetricsRecorder
	snapshots snapshot.Store
	blobs     blob.Store
	clock     func() time.Time
}

// Option customizes a Service.
type Option func(*options)

// WithLogger routes service diagnostics to l.
func WithLogger(l model.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records operation outcomes on m.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSnapshots enables Snapshot and Restore against st.
func WithSnapshots(st snapshot.Store) Option {
	return func(o *options) { o.snapshots = st }
}

// WithBlobs enables Export against st.
func WithBlobs(st blob.Store) Option {
	return func(o *options) { o.blobs = st }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// New constructs a service over the given schema.
func New(schema *model.Schema, opts ...Option) *Service {
	o := options{logger: schema.Logger(), metrics: noopMetrics{}, clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		schema:    schema,
		logger:    o.logger,
		metrics:   o.metrics,
		snapshots: o.snapshots,
		blobs:     o.blobs,
		clock:     o.clock,
		docs:      make(map[string]*xdoc.Document),
	}
}

// Schema returns the schema every managed document is wrapped with.
func (s *Service) Schema() *model.Schema { return s.schema }

func (s *Service) instrument(ctx context.Context, op string) func(error) {
	start := s.clock()
	return func(err error) {
		s.metrics.Observe(ctx, op, err == nil, s.clock().Sub(start))
		if err != nil {
			s.logger.Error(op+" failed", "error", err)
		}
	}
}

// NewDocument creates an empty document whose root carries the given
// registered type and registers it under name.
func (s *Service) NewDocument(ctx context.Context, name, typeName string) (ent model.Entity, err error) {
	done := s.instrument(ctx, "new_document")
	defer func() { done(err) }()
	typ, ok := s.schema.TypeByName(typeName)
	if !ok {
		return model.Entity{}, fmt.Errorf("service: unknown type %q", typeName)
	}
	doc := xdoc.New(typ.Tag)
	doc.Root().SetAttr(xdoc.AttrID, "root")
	doc.Root().SetAttr(xdoc.AttrType, typ.Discriminator)
	if err = doc.IndexID(doc.Root()); err != nil {
		return model.Entity{}, err
	}
	if err = s.register(name, doc); err != nil {
		return model.Entity{}, err
	}
	s.logger.Info("document created", "name", name, "type", typeName)
	return s.schema.Wrap(doc, doc.Root()), nil
}

// Load parses a serialized document from r and registers it under name,
// replacing any document previously registered under it.
func (s *Service) Load(ctx context.Context, name string, r io.Reader) (ent model.Entity, err error) {
	done := s.instrument(ctx, "load")
	defer func() { done(err) }()
	doc, err := xdoc.Parse(r)
	if err != nil {
		return model.Entity{}, err
	}
	s.mu.Lock()
	s.docs[name] = doc
	s.mu.Unlock()
	s.logger.Info("document loaded", "name", name)
	return s.schema.Wrap(doc, doc.Root()), nil
}

func (s *Service) register(name string, doc *xdoc.Document) error {
	if name == "" {
		return fmt.Errorf("service: empty document name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[name]; exists {
		return fmt.Errorf("service: document %q already exists", name)
	}
	s.docs[name] = doc
	return nil
}

// Document returns the raw document registered under name.
func (s *Service) Document(name string) (*xdoc.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[name]
	return doc, ok
}

// Root returns the wrapped root entity of the named document.
func (s *Service) Root(name string) (model.Entity, error) {
	doc, ok := s.Document(name)
	if !ok {
		return model.Entity{}, fmt.Errorf("service: no document %q", name)
	}
	return s.schema.Wrap(doc, doc.Root()), nil
}

// Names lists the registered document names.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for name := range s.docs {
		out = append(out, name)
	}
	return out
}

// Drop forgets the named document without persisting anything.
func (s *Service) Drop(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[name]
	delete(s.docs, name)
	return ok
}

// Save serializes the named document to w.
func (s *Service) Save(ctx context.Context, name string, w io.Writer) (err error) {
	done := s.instrument(ctx, "save")
	defer func() { done(err) }()
	doc, ok := s.Document(name)
	if !ok {
		return fmt.Errorf("service: no document %q", name)
	}
	return doc.WriteTo(w)
}

// Snapshot serializes the named document and appends it as a new version
// in the snapshot store.
func (s *Service) Snapshot(ctx context.Context, name string) (rec snapshot.Record, err error) {
	done := s.instrument(ctx, "snapshot")
	defer func() { done(err) }()
	if s.snapshots == nil {
		return snapshot.Record{}, fmt.Errorf("service: no snapshot store configured")
	}
	var buf bytes.Buffer
	if err = s.Save(ctx, name, &buf); err != nil {
		return snapshot.Record{}, err
	}
	rec, err = s.snapshots.Save(ctx, name, buf.Bytes())
	if err != nil {
		return snapshot.Record{}, err
	}
	s.logger.Info("snapshot stored", "name", name, "version", rec.Version, "bytes", rec.Size)
	return rec, nil
}

// Restore replaces the named document with a stored snapshot version;
// version 0 means the newest one.
func (s *Service) Restore(ctx context.Context, name string, version int) (ent model.Entity, err error) {
	done := s.instrument(ctx, "restore")
	defer func() { done(err) }()
	if s.snapshots == nil {
		return model.Entity{}, fmt.Errorf("service: no snapshot store configured")
	}
	var rec snapshot.Record
	if version > 0 {
		rec, err = s.snapshots.LoadVersion(ctx, name, version)
	} else {
		rec, err = s.snapshots.Load(ctx, name)
	}
	if err != nil {
		return model.Entity{}, err
	}
	doc, err := xdoc.Parse(bytes.NewReader(rec.Payload))
	if err != nil {
		return model.Entity{}, fmt.Errorf("service: decode snapshot %s v%d: %w", name, rec.Version, err)
	}
	s.mu.Lock()
	s.docs[name] = doc
	s.mu.Unlock()
	s.logger.Info("snapshot restored", "name", name, "version", rec.Version)
	return s.schema.Wrap(doc, doc.Root()), nil
}

// Export serializes the named document into the archive store under key
// and returns the stored archive description.
func (s *Service) Export(ctx context.Context, name, key string) (info blob.Info, err error) {
	done := s.instrument(ctx, "export")
	defer func() { done(err) }()
	if s.blobs == nil {
		return blob.Info{}, fmt.Errorf("service: no archive store configured")
	}
	var buf bytes.Buffer
	if err = s.Save(ctx, name, &buf); err != nil {
		return blob.Info{}, err
	}
	info, err = s.blobs.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: "application/xml",
		Metadata:    map[string]string{"document": name},
	})
	if err != nil {
		return blob.Info{}, err
	}
	s.logger.Info("document exported", "name", name, "key", key, "bytes", info.Size)
	return info, nil
}
