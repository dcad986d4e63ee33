package main

import (
	"asnlookup/internal/config"
	"asnlookup/internal/lookup"
	"asnlookup/pkg/domain"
	"asnlookup/pkg/logger"
	"asnlookup/pkg/metrics"
	"asnlookup/pkg/resolver"
	"asnlookup/pkg/resolver/dnsclient"
	"asnlookup/pkg/resolver/system"
	"asnlookup/pkg/serrors"
	"asnlookup/pkg/whois/cymru"
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// asnHeader is printed above the WHOIS data lines. The server's own header is
// stripped from the response.
const asnHeader = "AS      | IP               | BGP Prefix          | CC | Registry | Allocated  | AS Name"

// getResolver creates the resolver selected by the configured backend.
func getResolver(cfg *config.Config) (resolver.Resolver, error) {
	switch cfg.Resolver.Backend {
	case config.ResolverBackendSystem:
		return system.New(system.NewOptions(cfg)), nil
	case config.ResolverBackendDNS:
		return dnsclient.New(dnsclient.NewOptions(cfg)), nil
	default:
		return nil, serrors.With(serrors.ErrBadRequest, "unknown resolver backend %q", cfg.Resolver.Backend)
	}
}

// getMetrics creates a meter backed by a Prometheus registry and returns it
// along with a cleanup function that exports the registry when a textfile path
// is configured and shuts the provider down.
func getMetrics(ctx context.Context, cfg *config.Config) (metric.Meter, func(), error) {
	reg := prometheus.NewRegistry()
	mp, err := metrics.NewMeterProvider(reg)
	if err != nil {
		return nil, nil, err
	}

	return mp.Meter("asnlookup"), func() {
		ctx := context.WithoutCancel(ctx)

		if path := cfg.Metrics.TextfilePath; path != "" {
			logger.Debug(ctx, "writing metrics textfile...", zap.String("path", path))
			if err := metrics.WriteTextfile(path, reg); err != nil {
				logger.Warn(ctx, "could not write metrics textfile", zap.Error(err))
			}
		}

		if err := mp.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "could not shutdown meter provider", zap.Error(err))
		}
	}, nil
}

// newService wires the resolver, the WHOIS client and metrics into a lookup service.
func newService(ctx context.Context, cfg *config.Config) (lookup.Service, func(), error) {
	res, err := getResolver(cfg)
	if err != nil {
		return nil, nil, err
	}

	meter, closeMetrics, err := getMetrics(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	svc, err := lookup.New(res, cymru.New(nil, cymru.NewOptions(cfg)), meter)
	if err != nil {
		closeMetrics()

		return nil, nil, err
	}

	return svc, closeMetrics, nil
}

// printLookup writes the user facing outcome of res to w.
func printLookup(w io.Writer, res *domain.Lookup) error {
	var err error
	switch res.Status {
	case domain.LookupStatusNotResolved:
		_, err = fmt.Fprintf(w, "Could not resolve the domain: %s\n", res.Domain)
	case domain.LookupStatusNoASNData:
		_, err = fmt.Fprintf(w, "Could not retrieve ASN information for IP: %s\n", res.Addr)
	case domain.LookupStatusCompleted:
		_, err = fmt.Fprintf(w, "%s\n%s\n", asnHeader, res.ASNInfo)
	default:
		err = fmt.Errorf("unexpected lookup status %q", res.Status)
	}

	return err
}
