package internal

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"secure-chat/domain"
	"secure-chat/repositories"

	"github.com/samber/lo"
)

//go:embed inspect.html
var templatesFS embed.FS

const defaultInspectLimit = 50

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	Author    string
	Detail    string
}

// InspectSource is the read side of the store shown by the inspector.
type InspectSource interface {
	ListUsers() ([]repositories.User, error)
	GetLastMessages(limit int) ([]domain.ChatMessage, error)
}

type StatsProvider func() map[string]any

type PageData struct {
	Kind  string
	Items []InspectRow
	Stats map[string]any
	Error string
}

// NewDebugServer returns an HTTP server exposing the store on /inspect.
// Password hashes are never rendered. The caller owns ListenAndServe and Shutdown.
func NewDebugServer(addr string, source InspectSource, statsProvider StatsProvider, log *slog.Logger) *http.Server {
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	mux := http.NewServeMux()

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		data := PageData{Kind: r.URL.Query().Get("kind"), Stats: map[string]any{}}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		var err error
		switch data.Kind {
		case "users":
			data.Items, err = userRows(source)
		default:
			data.Kind = "messages"
			data.Items, err = messageRows(source, inspectLimit(r))
		}
		if err != nil {
			log.Warn("Inspector query failed", "kind", data.Kind, "error", err)
			data.Error = err.Error()
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			log.Warn("Inspector rendering failed", "error", err)
		}
	})

	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func inspectLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultInspectLimit
	}
	return limit
}

func userRows(source InspectSource) ([]InspectRow, error) {
	users, err := source.ListUsers()
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u repositories.User, _ int) InspectRow {
		return InspectRow{
			Key:       "user:" + u.Username,
			Type:      "USER",
			Timestamp: u.CreatedAt.UTC().Format(time.DateTime),
			Author:    u.Username,
			Detail:    "argon2id hash",
		}
	}), nil
}

func messageRows(source InspectSource, limit int) ([]InspectRow, error) {
	messages, err := source.GetLastMessages(limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(messages, func(m domain.ChatMessage, _ int) InspectRow {
		return InspectRow{
			Key:       "msg:" + strconv.FormatUint(m.ID, 10),
			Type:      "CHAT",
			Timestamp: m.At.UTC().Format(time.DateTime),
			Author:    m.Username,
			Detail:    m.Text,
		}
	}), nil
}
