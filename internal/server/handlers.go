package server

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/analysis"
	"github.com/KaramelBytes/munidata-cli/internal/chart"
	"github.com/KaramelBytes/munidata-cli/internal/export"
	"github.com/KaramelBytes/munidata-cli/internal/reshape"
	"github.com/KaramelBytes/munidata-cli/internal/warehouse"
	"github.com/gorilla/mux"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.store.Areas()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"areas": nonNil(areas)})
}

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	area := mux.Vars(r)["area"]
	vars, err := s.store.Variables(area)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"area": area, "variables": nonNil(vars)})
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.store.Years()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"years": nonNil(years)})
}

func (s *Server) handleMunicipalities(w http.ResponseWriter, r *http.Request) {
	years := multi(r, "year")
	muns, err := s.store.Municipalities(years)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"years": years, "municipalities": nonNil(muns)})
}

type seriesResponse struct {
	Area        string           `json:"area"`
	Variable    string           `json:"variable"`
	NameColumn  string           `json:"name_column"`
	ValueColumn string           `json:"value_column"`
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
	Warnings    []string         `json:"warnings,omitempty"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q := query(r)
	ser, err := s.store.Series(q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seriesResponse{
		Area:        q.Area,
		Variable:    q.Variable,
		NameColumn:  ser.NameColumn,
		ValueColumn: ser.ValueColumn,
		Columns:     ser.Table.Columns,
		Rows:        export.Rows(ser.Table),
		Warnings:    ser.Warnings,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rep, _, err := s.store.Report(query(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	kind, err := chart.ParseKind(r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, badRequest{err})
		return
	}
	q := query(r)
	ser, err := s.store.Series(q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pts := chart.Points(ser.Table, ser.NameColumn, ser.ValueColumn, s.store.Schema.Year, s.store.Number)
	var buf bytes.Buffer
	opt := chart.Options{Title: q.Area + "/" + q.Variable, YLabel: q.Variable}
	if err := chart.Render(&buf, kind, pts, opt); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

type correlationResponse struct {
	Matrix   *analysis.CorrMatrix `json:"matrix"`
	Columns  []string             `json:"columns"`
	Rows     []map[string]any     `json:"rows"`
	Warnings []string             `json:"warnings,omitempty"`
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	req := warehouse.CorrelationRequest{Selection: selection(r), Method: s.method}
	if m := r.URL.Query().Get("method"); m != "" {
		method, err := analysis.ParseMethod(m)
		if err != nil {
			s.writeError(w, badRequest{err})
			return
		}
		req.Method = method
	}
	for _, v := range multi(r, "var") {
		ref, err := warehouse.ParseVariableRef(v)
		if err != nil {
			s.writeError(w, err)
			return
		}
		req.Variables = append(req.Variables, ref)
	}
	res, err := s.store.Correlate(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, correlationResponse{
		Matrix:   res.Matrix,
		Columns:  res.Rows.Columns,
		Rows:     export.Rows(res.Rows),
		Warnings: res.Warnings,
	})
}

func query(r *http.Request) warehouse.Query {
	v := mux.Vars(r)
	return warehouse.Query{Area: v["area"], Variable: v["variable"], Selection: selection(r)}
}

func selection(r *http.Request) reshape.Selection {
	return reshape.Selection{Years: multi(r, "year"), Municipalities: multi(r, "municipality")}
}

// multi collects repeated and comma-separated query values.
func multi(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
