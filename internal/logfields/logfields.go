package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPage       = "page"
	KeyTaskID     = "task_id"
	KeyOutcome    = "outcome"
	KeyAge        = "age_seconds"
	KeyHorizon    = "horizon_seconds"
	KeyDurationMS = "duration_ms"
	KeyStore      = "store"
	KeySource     = "source"
	KeySubject    = "subject"
	KeyPath       = "path"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Page(key string) slog.Attr          { return slog.String(KeyPage, key) }
func TaskID(id string) slog.Attr         { return slog.String(KeyTaskID, id) }
func Outcome(o string) slog.Attr         { return slog.String(KeyOutcome, o) }
func AgeSeconds(s float64) slog.Attr     { return slog.Float64(KeyAge, s) }
func HorizonSeconds(s float64) slog.Attr { return slog.Float64(KeyHorizon, s) }
func DurationMS(ms float64) slog.Attr    { return slog.Float64(KeyDurationMS, ms) }
func Store(name string) slog.Attr        { return slog.String(KeyStore, name) }
func Source(name string) slog.Attr       { return slog.String(KeySource, name) }
func Subject(s string) slog.Attr         { return slog.String(KeySubject, s) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Method(m string) slog.Attr          { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr          { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr      { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
