package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/metrics/export/internaldefs"
)

// Source is the subset of *goToken.Engine the exporter reads.
type Source interface {
	MetricsSnapshot() goToken.MetricsSnapshot
	AuditDropped() uint64
}

type healthSource interface {
	Health(ctx context.Context) goToken.HealthStatus
}

// Exporter renders a Source on demand.
type Exporter struct {
	source        Source
	healthTimeout time.Duration
}

// New returns an exporter for source. *goToken.Engine is the usual source.
func New(source Source) *Exporter {
	return &Exporter{source: source, healthTimeout: time.Second}
}

// Handler serves Render output.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.render(r.Context())))
	})
}

// Render returns the current metrics. The output is empty when the source
// has metrics disabled and nothing was dropped.
func (p *Exporter) Render() string {
	return p.render(context.Background())
}

func (p *Exporter) render(ctx context.Context) string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeSample(&b, def.Name, def.Help, "counter", snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		buckets, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		writeHistogram(&b, def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(buckets)))
	}
	writeSample(&b, internaldefs.AuditDropped.Name, internaldefs.AuditDropped.Help, "counter", dropped)

	if hs, ok := p.source.(healthSource); ok {
		hctx, cancel := context.WithTimeout(ctx, p.healthTimeout)
		h := hs.Health(hctx)
		cancel()
		var up uint64
		if h.StoreAvailable {
			up = 1
		}
		writeSample(&b, internaldefs.Namespace+"_store_up", "Whether the revocation store answered the last health check.", "gauge", up)
	}

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, typ string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(typ)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, help, typ string, value uint64) {
	writeHeader(b, name, help, typ)
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString(`_bucket{le="`)
		b.WriteString(le)
		b.WriteString(`"} `)
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}
	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteByte('\n')
	// Engine snapshots keep bucket counts only.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}
