package bot

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stravabot/server/pkg/domain/activity"
	"github.com/stravabot/server/pkg/pipeline"
)

const (
	msgConnectLink     = "🔗 Klik untuk hubungkan Strava:\n%s"
	msgConnected       = "✅ Strava berhasil terhubung! Kirim /analisis untuk lihat data."
	msgConnectFailed   = "❌ Gagal menghubungkan Strava. Kirim /connect untuk mencoba lagi."
	msgAccountMismatch = "❌ Chat ini sudah terhubung ke akun Strava lain. Kirim /disconnect dulu."
	msgStatusOn        = "✅ Strava sudah terhubung."
	msgStatusOff       = "❌ Belum terhubung. Kirim /connect untuk menghubungkan Strava."
	msgDisconnected    = "🔌 Strava berhasil di-disconnect."
	msgAnalyzing       = "⏳ Mengambil aktivitas terakhir..."
	msgUnknown         = "🤖 Perintah tidak dikenal."
	msgError           = "⚠️ Terjadi kesalahan. Silakan coba lagi."
	msgNoSummary       = "(Ringkasan AI tidak tersedia saat ini.)"

	msgHelp = "Perintah yang tersedia:\n" +
		"/connect - hubungkan akun Strava\n" +
		"/status - cek koneksi Strava\n" +
		"/analisis - analisis aktivitas terakhir\n" +
		"/disconnect - putuskan koneksi Strava\n" +
		"/help - tampilkan bantuan ini"
)

// MessageFor maps a non-success outcome to the text shown to the user. It
// never includes upstream error details.
func MessageFor(outcome pipeline.Outcome) string {
	switch outcome {
	case pipeline.OutcomeNotConnected:
		return "❌ Strava belum terhubung. Kirim /connect untuk menghubungkan."
	case pipeline.OutcomeEmpty:
		return "ℹ️ Tidak ada aktivitas ditemukan."
	case pipeline.OutcomeTemporaryFailure:
		return "⚠️ Gagal mengambil data aktivitas. Silakan coba lagi nanti.\n⚡ Gunakan /connect ulang jika masalah berlanjut."
	}
	return ""
}

// Formatter renders run results with locale-aware numbers.
type Formatter struct {
	printer *message.Printer
}

func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

// FormatResult renders a pipeline result as one chat message.
func (f *Formatter) FormatResult(res pipeline.Result) string {
	if res.Outcome != pipeline.OutcomeSuccess {
		return MessageFor(res.Outcome)
	}

	var b strings.Builder
	b.WriteString(f.printer.Sprintf("🏃 %d aktivitas terakhir:\n", len(res.Activities)))
	for i := range res.Activities {
		b.WriteString(f.activityLine(i+1, &res.Activities[i]))
	}

	b.WriteString("\n")
	if res.Summary != "" {
		b.WriteString(res.Summary)
	} else {
		b.WriteString(msgNoSummary)
	}
	return b.String()
}

func (f *Formatter) activityLine(n int, a *activity.Summary) string {
	p := f.printer

	date := ""
	if !a.StartDate.IsZero() {
		date = " · " + a.StartDate.In(time.UTC).Format("02 Jan")
	}

	splits := "split tidak tersedia"
	switch a.SplitSource {
	case activity.SplitSourceNative:
		splits = p.Sprintf("%d split", len(a.Splits))
	case activity.SplitSourceLaps:
		splits = p.Sprintf("%d lap", len(a.Splits))
	}

	return p.Sprintf("%d. %s (%s)%s\n", n, a.Name, a.Type, date) +
		p.Sprintf("   %.2f km · %s · %s /km · %s\n",
			a.Distance/1000,
			activity.FormatClock(a.MovingTime),
			activity.FormatPace(a.Pace()),
			splits,
		)
}
