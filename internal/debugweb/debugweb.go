// Package debugweb serves the loopback-only debug pages of a monitor
// session: a command form, a live SSE tail of decoded samples, an HTML chart
// and a PNG plot of the series.
package debugweb

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/mcuscope/internal/command"
	"github.com/banshee-data/mcuscope/internal/monitoring"
	"github.com/banshee-data/mcuscope/internal/scheduler"
	"github.com/banshee-data/mcuscope/internal/sink"
)

//go:embed templates/*
var templateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(templateFS, "templates/send-command.html.tmpl"))

// Server holds what the debug routes need from a running session.
type Server struct {
	// Sender writes commands typed into send-command. Nil disables
	// send-command-api.
	Sender command.Sender
	// Reset clears the series on the scheduler goroutine. Nil disables
	// reset-api.
	Reset func(ctx context.Context) error
	View  *sink.View

	Title      string
	Unit       string
	LineEnding string
}

type seriesResponse struct {
	Samples []scheduler.Sample `json:"samples"`
	Summary summaryJSON        `json:"summary"`
}

type summaryJSON struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func (s *Server) snapshot() []scheduler.Sample {
	if s.View == nil {
		return nil
	}
	return s.View.Snapshot()
}

// Attach registers the debug routes on mux under /debug/.
func (s *Server) Attach(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "send a command to the MCU and tail samples", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		data := struct{ Title, Unit string }{s.Title, s.Unit}
		if err := sendCommandTemplate.Execute(buf, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.Sender == nil {
			http.Error(w, "No link", http.StatusServiceUnavailable)
			return
		}
		text := strings.TrimSpace(r.FormValue("command"))
		if text == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		cmd, err := command.ParseCommand(text, s.LineEnding)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.Sender.Send(cmd); err != nil {
			monitoring.Diagf("debug send %s: %v", cmd, err)
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %s to serial port", cmd))
	})

	debug.HandleSilentFunc("reset-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.Reset == nil {
			http.Error(w, "Reset not available", http.StatusServiceUnavailable)
			return
		}
		if err := s.Reset(r.Context()); err != nil {
			http.Error(w, "Failed to reset: "+err.Error(), http.StatusInternalServerError)
			return
		}
		io.WriteString(w, "Series cleared")
	})

	// Server-Sent Events, one JSON sample per event.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.View == nil {
			http.Error(w, "No live view", http.StatusServiceUnavailable)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.View.Subscribe()
		defer s.View.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		f, err := templateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})

	debug.HandleFunc("chart", "interactive chart of the series", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sink.RenderChart(buf, s.snapshot(), s.Title, s.Unit); err != nil {
			http.Error(w, "Failed to render chart", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.Copy(w, buf)
	})

	debug.HandleFunc("plot.png", "PNG plot of the series", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sink.RenderPNG(buf, s.snapshot(), s.Title, s.Unit); err != nil {
			http.Error(w, "Failed to render plot", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		io.Copy(w, buf)
	})

	debug.HandleFunc("series.json", "series samples and summary as JSON", func(w http.ResponseWriter, r *http.Request) {
		series := s.snapshot()
		sum := sink.Summarise(series)
		resp := seriesResponse{
			Samples: series,
			Summary: summaryJSON{Count: sum.Count, Mean: sum.Mean, StdDev: sum.StdDev, Min: sum.Min, Max: sum.Max},
		}
		if resp.Samples == nil {
			resp.Samples = []scheduler.Sample{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			monitoring.Diagf("encode series.json: %v", err)
		}
	})
}
