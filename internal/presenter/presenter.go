// Package presenter turns records into public or private views. It picks
// the attributes and associations of each record type from a descriptor
// registry and hands them to the projector.
package presenter

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"record-presenter/internal/descriptor"
	"record-presenter/internal/diagnostic"
	"record-presenter/internal/projector"
	"record-presenter/internal/record"
)

// Options configure a Presenter.
type Options struct {
	// PresentationKey is the default presentation key for types that set
	// none. Empty means "uuid".
	PresentationKey string
	// MissingAssociations is the default policy for types that set none.
	// The zero value means load.
	MissingAssociations descriptor.Policy
	// Sink receives missing-data warnings.
	Sink diagnostic.Sink
	// Logger receives debug output of the projector.
	Logger *slog.Logger
	// Tracer opens a span per projected record and per fetch.
	Tracer trace.Tracer
	// Concurrency caps each fan-out stage; 0 means no cap.
	Concurrency int
}

func (o Options) projectorOptions() []projector.Option {
	return []projector.Option{
		projector.WithSink(o.Sink),
		projector.WithLogger(o.Logger),
		projector.WithTracer(o.Tracer),
		projector.WithConcurrency(o.Concurrency),
	}
}

// Presenter projects records of the registered types.
type Presenter struct {
	registry  *descriptor.Registry
	projector *projector.Projector
}

var _ projector.Planner = (*Presenter)(nil)

// New creates a Presenter over an existing registry. Options defaults are
// ignored; the registry carries its own.
func New(registry *descriptor.Registry, store projector.Store, opts Options) *Presenter {
	p := &Presenter{registry: registry}
	p.projector = projector.New(store, p, opts.projectorOptions()...)

	return p
}

// Extend registers types with the option defaults and returns a Presenter
// serving them.
func Extend(store projector.Store, opts Options, types ...descriptor.TypeDescriptor) (*Presenter, error) {
	registry := descriptor.NewRegistry(descriptor.Defaults{
		PresentationKey:     opts.PresentationKey,
		MissingAssociations: opts.MissingAssociations,
	})

	var errs []error

	for _, t := range types {
		if err := registry.Register(t); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return New(registry, store, opts), nil
}

// Registry returns the descriptors the presenter serves.
func (p *Presenter) Registry() *descriptor.Registry {
	return p.registry
}

// Plan builds the projection request for rec in mode.
func (p *Presenter) Plan(rec *record.Record, mode descriptor.Mode) (projector.Request, error) {
	d, ok := p.registry.Lookup(rec.Type)
	if !ok {
		return projector.Request{}, unknownType(rec.Type, mode)
	}

	attrs, ok := d.Attributes(mode)
	if !ok {
		return projector.Request{}, attributesUndefined(rec.Type, mode)
	}

	return projector.Request{
		Attributes:      attrs,
		Associations:    d.Associations(mode),
		PresentationKey: d.PresentationKey,
		Policy:          d.MissingAssociations,
		Mode:            mode,
	}, nil
}

// ToPublicView projects rec with its public attributes and associations.
func (p *Presenter) ToPublicView(ctx context.Context, rec *record.Record) (*projector.Result, error) {
	return p.View(ctx, rec, descriptor.ModePublic)
}

// ToPrivateView projects rec with its public and private attributes and
// its private associations.
func (p *Presenter) ToPrivateView(ctx context.Context, rec *record.Record) (*projector.Result, error) {
	return p.View(ctx, rec, descriptor.ModePrivate)
}

// View projects rec in mode. Every nested record is projected in the same
// mode.
func (p *Presenter) View(ctx context.Context, rec *record.Record, mode descriptor.Mode) (*projector.Result, error) {
	if rec == nil {
		return nil, nil
	}

	req, err := p.Plan(rec, mode)
	if err != nil {
		return nil, err
	}

	return p.projector.Project(ctx, rec, req, record.Path{})
}

// Project runs an explicit request against rec. Nested records are still
// planned from the registry.
func (p *Presenter) Project(ctx context.Context, rec *record.Record, req projector.Request, path record.Path) (*projector.Result, error) {
	return p.projector.Project(ctx, rec, req, path)
}

// View binds a record to a Presenter.
type View struct {
	presenter *Presenter
	rec       *record.Record
}

// Wrap binds rec to p.
func (p *Presenter) Wrap(rec *record.Record) View {
	return View{presenter: p, rec: rec}
}

// Record returns the wrapped record.
func (v View) Record() *record.Record {
	return v.rec
}

// ToPublicView projects the wrapped record publicly.
func (v View) ToPublicView(ctx context.Context) (*projector.Result, error) {
	return v.presenter.ToPublicView(ctx, v.rec)
}

// ToPrivateView projects the wrapped record privately.
func (v View) ToPrivateView(ctx context.Context) (*projector.Result, error) {
	return v.presenter.ToPrivateView(ctx, v.rec)
}

// Project runs req against the wrapped record.
func (v View) Project(ctx context.Context, req projector.Request) (*projector.Result, error) {
	return v.presenter.Project(ctx, v.rec, req, record.Path{})
}
