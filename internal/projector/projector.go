package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"record-presenter/internal/common"
	"record-presenter/internal/descriptor"
	"record-presenter/internal/diagnostic"
	"record-presenter/internal/record"
)

const tracerName = "record-presenter/internal/projector"

// ErrNoPlanner is returned when a nested record must be projected but the
// Projector was built without a Planner.
var ErrNoPlanner = errors.New("projector: no planner for nested records")

// Projector projects records through a Store. It holds no per-call state
// and is safe for concurrent use.
type Projector struct {
	store   Store
	planner Planner
	sink    diagnostic.Sink
	logger  *slog.Logger
	tracer  trace.Tracer
	limit   int
}

// Option configures a Projector.
type Option func(*Projector)

// WithSink sets where missing-data warnings go (default: discarded).
func WithSink(s diagnostic.Sink) Option {
	return func(p *Projector) {
		if s != nil {
			p.sink = s
		}
	}
}

// WithLogger sets the logger for debug output (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracer sets the tracer used for fetch spans (default: global provider).
func WithTracer(t trace.Tracer) Option {
	return func(p *Projector) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithConcurrency caps the goroutines of each fan-out stage; 0 means no cap.
func WithConcurrency(n int) Option {
	return func(p *Projector) {
		p.limit = max(n, 0)
	}
}

// New creates a Projector. planner plans nested records; it may be nil if
// requests never contain associations.
func New(store Store, planner Planner, opts ...Option) *Projector {
	p := &Projector{
		store:   store,
		planner: planner,
		sink:    diagnostic.Discard,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// slot is one output key. Each slot is written by exactly one goroutine,
// which is what lets the stages run without locks.
type slot struct {
	key   string
	value any
	set   bool
}

func (s *slot) assign(key string, value any) {
	s.key = key
	s.value = value
	s.set = true
}

// keyGroup holds the key attributes that refer to one association.
type keyGroup struct {
	association string
	attrs       []string
	slots       []int
}

// fetched is a lazily loaded association kept for the rest of one call.
type fetched struct {
	association string
	link        record.Link
	ok          bool
}

// Project projects rec. It returns a nil Result and no error when rec is
// already on path, which is how cycles are cut.
func (p *Projector) Project(ctx context.Context, rec *record.Record, req Request, path record.Path) (*Result, error) {
	if rec == nil {
		return nil, nil
	}

	key := rec.Key()
	if path.Contains(key) {
		p.logger.DebugContext(ctx, "cycle detected, skipping record",
			slog.String("record", key.String()), slog.String("path", path.String()))

		return nil, nil
	}

	ctx, span := p.tracer.Start(ctx, "projector.Project", trace.WithAttributes(
		attribute.String("record.type", rec.Type),
		attribute.String("record.id", rec.ID),
		attribute.String("projection.mode", string(req.mode())),
		attribute.Int("projection.depth", path.Len()),
	))
	defer span.End()

	res, err := p.project(ctx, rec, req, path.Push(key))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	return res, nil
}

func (p *Projector) project(ctx context.Context, rec *record.Record, req Request, childPath record.Path) (*Result, error) {
	presentationKey := req.presentationKey()
	suffix := descriptor.KeySuffix(presentationKey)
	specs := descriptor.NormalizeSpecs(req.Associations)
	renames := descriptor.RenameIndex(specs)
	action := req.Policy.Resolve(rec.Type)

	slots := make([]slot, len(req.Attributes)+len(specs))

	// Plain attributes are copied as-is; key attributes are grouped by the
	// association they point at so each association is fetched once.
	var groups []*keyGroup

	byAssociation := map[string]*keyGroup{}

	for i, attr := range req.Attributes {
		if _, isKey := common.TrimSuffixStrict(attr, suffix); isKey {
			assoc := descriptor.ImpliedAssociation(attr, suffix, renames)

			g, ok := byAssociation[assoc]
			if !ok {
				g = &keyGroup{association: assoc}
				byAssociation[assoc] = g
				groups = append(groups, g)
			}

			g.attrs = append(g.attrs, attr)
			g.slots = append(g.slots, i)

			continue
		}

		if v, ok := p.store.Attribute(rec, attr); ok {
			slots[i].assign(attr, v)
		}
	}

	cache := map[string]record.Link{}

	// Key attributes.
	loaded := make([]fetched, len(groups))
	g := p.group()

	for i, kg := range groups {
		g.Go(func() error {
			f, err := p.resolveKeys(ctx, rec, kg, presentationKey, action, slots)
			loaded[i] = f

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, f := range loaded {
		if f.ok {
			cache[f.association] = f.link
		}
	}

	// Prefetch everything else that is missing.
	if action == descriptor.ActionLoad {
		if err := p.prefetch(ctx, rec, specs, cache); err != nil {
			return nil, err
		}
	}

	// Descent.
	base := len(req.Attributes)
	mode := req.mode()
	g = p.group()

	for j, s := range specs {
		g.Go(func() error {
			v, ok, err := p.descend(ctx, rec, s, cache, mode, action, childPath)
			if err != nil {
				return err
			}

			if ok {
				slots[base+j].assign(s.Rename, v)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := NewResult()

	for _, s := range slots {
		if s.set {
			res.Set(s.key, s.value)
		}
	}

	return res, nil
}

// resolveKeys fills the slots of every key attribute in kg. A link fetched
// along the way is returned so the association isn't fetched again.
func (p *Projector) resolveKeys(
	ctx context.Context,
	rec *record.Record,
	kg *keyGroup,
	presentationKey string,
	action descriptor.Action,
	slots []slot,
) (fetched, error) {
	var pending []int

	for i, attr := range kg.attrs {
		if v, ok := p.store.Attribute(rec, attr); ok && v != nil {
			slots[kg.slots[i]].assign(attr, v)
			continue
		}

		pending = append(pending, i)
	}

	if len(pending) == 0 {
		return fetched{}, nil
	}

	fill := func(target *record.Record) bool {
		if target == nil {
			return false
		}

		v, ok := p.store.Attribute(target, presentationKey)
		if !ok {
			return false
		}

		for _, i := range pending {
			slots[kg.slots[i]].assign(kg.attrs[i], v)
		}

		return true
	}

	// A resident association is never fetched again, even when it is null or
	// its target has no presentation key.
	if link, ok := p.store.ResidentAssociation(rec, kg.association); ok {
		if fill(link.Record()) || action != descriptor.ActionWarn {
			return fetched{}, nil
		}

		for _, i := range pending {
			if link.IsNull() {
				p.sink.Warn(fmt.Sprintf("%s attribute requested but %s model was not included",
					kg.attrs[i], kg.association))
			} else {
				p.sink.Warn(fmt.Sprintf("%s attribute requested but included %s model has no %s",
					kg.attrs[i], kg.association, presentationKey))
			}
		}

		return fetched{}, nil
	}

	switch action {
	case descriptor.ActionLoad:
		link, err := p.fetch(ctx, rec, kg.association)
		if err != nil {
			return fetched{}, err
		}

		fill(link.Record())

		return fetched{association: kg.association, link: link, ok: true}, nil

	case descriptor.ActionWarn:
		for _, i := range pending {
			p.sink.Warn(fmt.Sprintf("%s attribute requested but %s model was not included",
				kg.attrs[i], kg.association))
		}
	}

	return fetched{}, nil
}

// prefetch loads every association in specs that is neither cached nor
// resident, all at once, and adds them to cache.
func (p *Projector) prefetch(ctx context.Context, rec *record.Record, specs []descriptor.AssociationSpec, cache map[string]record.Link) error {
	var missing []string

	for _, s := range specs {
		if _, ok := cache[s.Association]; ok {
			continue
		}

		if _, ok := p.store.ResidentAssociation(rec, s.Association); ok {
			continue
		}

		missing = append(missing, s.Association)
	}

	missing = common.Unique(missing)
	links := make([]record.Link, len(missing))
	g := p.group()

	for i, assoc := range missing {
		g.Go(func() error {
			link, err := p.fetch(ctx, rec, assoc)
			links[i] = link

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for i, assoc := range missing {
		cache[assoc] = links[i]
	}

	return nil
}

// descend projects one association. ok is false when nothing should be
// written for it.
func (p *Projector) descend(
	ctx context.Context,
	rec *record.Record,
	s descriptor.AssociationSpec,
	cache map[string]record.Link,
	mode descriptor.Mode,
	action descriptor.Action,
	path record.Path,
) (any, bool, error) {
	if p.foreignKeyOnPath(rec, s.Association, path) {
		p.logger.DebugContext(ctx, "association target already on path",
			slog.String("record", rec.Key().String()), slog.String("association", s.Association))

		return nil, false, nil
	}

	link, ok := cache[s.Association]
	if !ok {
		link, ok = p.store.ResidentAssociation(rec, s.Association)
	}

	if !ok || link.IsNull() {
		if action == descriptor.ActionWarn {
			p.sink.Warn(fmt.Sprintf("%s association requested but %s model was not included",
				s.Rename, s.Association))
		}

		return nil, false, nil
	}

	if !link.IsCollection() {
		res, err := p.projectNested(ctx, link.Record(), mode, path)
		if err != nil || res == nil {
			return nil, false, err
		}

		return res, true, nil
	}

	members := link.Records()
	out := make([]*Result, len(members))
	g := p.group()

	for i, m := range members {
		g.Go(func() error {
			res, err := p.projectNested(ctx, m, mode, path)
			out[i] = res

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	// Members cut by the cycle guard are dropped.
	kept := out[:0]
	for _, r := range out {
		if r != nil {
			kept = append(kept, r)
		}
	}

	return kept, true, nil
}

func (p *Projector) projectNested(ctx context.Context, rec *record.Record, mode descriptor.Mode, path record.Path) (*Result, error) {
	if rec == nil {
		return nil, nil
	}

	// Check before planning so a cut record never needs a descriptor.
	if path.Contains(rec.Key()) {
		p.logger.DebugContext(ctx, "cycle detected, skipping record",
			slog.String("record", rec.Key().String()), slog.String("path", path.String()))

		return nil, nil
	}

	if p.planner == nil {
		return nil, ErrNoPlanner
	}

	req, err := p.planner.Plan(rec, mode)
	if err != nil {
		return nil, err
	}

	req.Mode = mode

	return p.Project(ctx, rec, req, path)
}

// foreignKeyOnPath reports whether rec's "<association>Id" attribute names
// a record of type association that is already on path.
func (p *Projector) foreignKeyOnPath(rec *record.Record, association string, path record.Path) bool {
	v, ok := p.store.Attribute(rec, association+"Id")
	if !ok || v == nil {
		return false
	}

	return path.Contains(record.Key{ID: record.FormatID(v), Type: association})
}

func (p *Projector) fetch(ctx context.Context, rec *record.Record, association string) (record.Link, error) {
	ctx, span := p.tracer.Start(ctx, "projector.FetchAssociation", trace.WithAttributes(
		attribute.String("record.type", rec.Type),
		attribute.String("record.id", rec.ID),
		attribute.String("association", association),
	))
	defer span.End()

	p.logger.DebugContext(ctx, "lazy loading association",
		slog.String("record", rec.Key().String()), slog.String("association", association))

	link, err := p.store.FetchAssociation(ctx, rec, association)
	if errors.Is(err, ErrNoSuchAssociation) {
		p.logger.DebugContext(ctx, "association unknown to store, omitting",
			slog.String("record", rec.Key().String()), slog.String("association", association))
		span.SetAttributes(attribute.Bool("association.unknown", true))

		return record.One(nil), nil
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return record.Link{}, fmt.Errorf("projector: fetch %s.%s: %w", rec.Type, association, err)
	}

	span.SetAttributes(attribute.Int("association.size", link.Len()))

	return link, nil
}

func (p *Projector) group() *errgroup.Group {
	g := new(errgroup.Group)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}

	return g
}
