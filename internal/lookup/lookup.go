// Package lookup runs the resolve-then-query pipeline: resolve a domain to its
// first address, then ask the WHOIS service about that address.
package lookup

import (
	"asnlookup/pkg/domain"
	"asnlookup/pkg/logger"
	"asnlookup/pkg/metrics"
	"asnlookup/pkg/resolver"
	"asnlookup/pkg/serrors"
	"asnlookup/pkg/whois"
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const (
	stageResolve = "resolve"
	stageWhois   = "whois"
)

// instruments groups the metrics recorded for every lookup.
type instruments struct {
	// lookups counts finished lookups by status.
	lookups metric.Int64Counter
	// failures counts failed lookups by error kind.
	failures metric.Int64Counter
	// duration records how long each stage took.
	duration metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (instruments, error) {
	lookups, err := meter.Int64Counter("asnlookup.lookups",
		metric.WithDescription("Finished lookups by status."))
	if err != nil {
		return instruments{}, fmt.Errorf("could not create lookups counter: %w", err)
	}

	failures, err := meter.Int64Counter("asnlookup.errors",
		metric.WithDescription("Failed lookups by error kind."))
	if err != nil {
		return instruments{}, fmt.Errorf("could not create errors counter: %w", err)
	}

	duration, err := meter.Float64Histogram("asnlookup.stage.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of the resolve and whois stages."),
		metric.WithExplicitBucketBoundaries(metrics.DefaultBuckets...))
	if err != nil {
		return instruments{}, fmt.Errorf("could not create duration histogram: %w", err)
	}

	return instruments{lookups: lookups, failures: failures, duration: duration}, nil
}

// service is the concrete implementation of the Service interface.
type service struct {
	// resolver maps the domain to an address.
	resolver resolver.Resolver
	// whois fetches ASN information for the address.
	whois whois.Client
	// instruments record outcomes and stage latencies.
	instruments instruments
}

// Lookup resolves name and, when it has an address, queries ASN information
// for the first one. Empty outcomes are reported through the returned status;
// only infrastructure failures are returned as errors. On error no partial
// lookup is returned.
func (s service) Lookup(ctx context.Context, name string) (*domain.Lookup, error) {
	res := &domain.Lookup{ID: domain.NewLookupID(), Domain: name}
	ctx = logger.WithFields(ctx, zap.Stringer("lookupID", res.ID), zap.String("domain", name))

	start := time.Now()
	addr, found, err := s.resolver.Resolve(ctx, name)
	s.observe(ctx, stageResolve, start)
	if err != nil {
		s.failed(ctx, err)

		return nil, fmt.Errorf("could not resolve domain: %w", err)
	}
	if !found {
		res.Status = domain.LookupStatusNotResolved
		s.finished(ctx, res)

		return res, nil
	}
	res.Addr = addr

	start = time.Now()
	info, err := s.whois.Query(ctx, addr)
	s.observe(ctx, stageWhois, start)
	if err != nil {
		s.failed(ctx, err)

		return nil, fmt.Errorf("could not query ASN information for %s: %w", addr, err)
	}

	if info == "" {
		res.Status = domain.LookupStatusNoASNData
	} else {
		res.Status = domain.LookupStatusCompleted
		res.ASNInfo = info
	}
	s.finished(ctx, res)

	return res, nil
}

func (s service) observe(ctx context.Context, stage string, start time.Time) {
	s.instruments.duration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

func (s service) finished(ctx context.Context, res *domain.Lookup) {
	s.instruments.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(res.Status))))

	logger.Info(ctx, "lookup finished",
		zap.String("status", string(res.Status)),
		zap.Stringer("addr", res.Addr))
}

func (s service) failed(ctx context.Context, err error) {
	kind := "UNKNOWN"
	fields := []zap.Field{zap.Error(err)}

	var serr *serrors.Error
	if errors.As(err, &serr) {
		if k := serr.Kind(); k != nil {
			kind = k.Error()
		}
		fields = append(fields, zap.String("reason", serr.Message()), zap.NamedError("cause", serr.Cause()))
	}
	s.instruments.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))

	logger.Info(ctx, "lookup failed", append(fields, zap.String("kind", kind))...)
}

// New creates a Service that resolves with res and queries ASN information
// with client. A nil meter disables metrics.
func New(res resolver.Resolver, client whois.Client, meter metric.Meter) (Service, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}

	inst, err := newInstruments(meter)
	if err != nil {
		return nil, err
	}

	return service{
		resolver:    res,
		whois:       client,
		instruments: inst,
	}, nil
}
