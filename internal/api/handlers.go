package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidpress/orchestrator/internal/history"
	"github.com/vidpress/orchestrator/internal/job"
	"github.com/vidpress/orchestrator/internal/orchestrator"
	"github.com/vidpress/orchestrator/internal/preset"
	"github.com/vidpress/orchestrator/internal/settings"
	"github.com/vidpress/orchestrator/internal/storage"
)

var startTime = time.Now()

// maxUploadBytes bounds one multipart submission, not one file; the
// per-file limit is the encoder adapter's concern.
const maxUploadBytes = 4 << 30

type Handlers struct {
	store    *job.Store
	orch     *orchestrator.Orchestrator
	events   *job.EventBus
	blobs    *storage.Store
	history  *history.Store
	settings *settings.Store
	presets  *preset.Catalog
}

func NewHandlers(store *job.Store, orch *orchestrator.Orchestrator, events *job.EventBus, blobs *storage.Store, historyStore *history.Store, settingsStore *settings.Store, presets *preset.Catalog) *Handlers {
	return &Handlers{
		store:    store,
		orch:     orch,
		events:   events,
		blobs:    blobs,
		history:  historyStore,
		settings: settingsStore,
		presets:  presets,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"jobs": map[string]int{
			"waiting":    stats[job.StatusWaiting],
			"analyzing":  stats[job.StatusAnalyzing],
			"processing": stats[job.StatusProcessing],
			"completed":  stats[job.StatusCompleted],
			"error":      stats[job.StatusError],
			"cancelled":  stats[job.StatusCancelled],
		},
	})
}

// jobView augments the raw job with display-only derived fields.
type jobView struct {
	job.Job
	ETA string `json:"eta,omitempty"`
}

func newJobView(j job.Job) jobView {
	v := jobView{Job: j}
	if j.Status == job.StatusProcessing && j.StartTime != nil {
		v.ETA = job.ETA(time.Since(*j.StartTime), j.Progress)
	}
	return v
}

// SubmitJobs accepts a multipart batch: one or more "files" parts plus
// either a preset name or explicit settings fields.
func (h *Handlers) SubmitJobs(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	kind := job.KindCompress
	if r.FormValue("kind") == string(job.KindRepair) {
		kind = job.KindRepair
	}

	presetName, encSettings, err := h.resolveSettings(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var repair *job.RepairSettings
	if kind == job.KindRepair {
		repair = &job.RepairSettings{RepairKind: r.FormValue("repair_kind")}
	}

	var sources []orchestrator.Source
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("open %s: %v", fh.Filename, err)})
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("read %s: %v", fh.Filename, err)})
				return
			}
			sources = append(sources, orchestrator.Source{FileName: fh.Filename, Data: data})
		}
	}

	created, rejected, err := h.orch.Enqueue(kind, sources, presetName, encSettings, repair)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"jobs":     created,
		"rejected": rejected,
	})
}

// resolveSettings picks encoding parameters: explicit preset, then the
// persisted default preset, with individual form fields overriding.
func (h *Handlers) resolveSettings(r *http.Request) (string, job.EncodeSettings, error) {
	presetName := r.FormValue("preset")
	if presetName == "" {
		cfg, err := h.settings.Load()
		if err != nil {
			return "", job.EncodeSettings{}, fmt.Errorf("load settings: %w", err)
		}
		presetName = cfg.DefaultPreset
	}

	var enc job.EncodeSettings
	if presetName == "custom" {
		cfg, err := h.settings.Load()
		if err != nil {
			return "", job.EncodeSettings{}, fmt.Errorf("load settings: %w", err)
		}
		enc = job.EncodeSettings{
			Quality:      cfg.Custom.Quality,
			SpeedPreset:  cfg.Custom.SpeedPreset,
			ScalePercent: cfg.Custom.Scale,
		}
	} else {
		p, ok := h.presets.Get(presetName)
		if !ok {
			return "", job.EncodeSettings{}, fmt.Errorf("unknown preset: %q", presetName)
		}
		enc = p.Settings()
	}

	if v := r.FormValue("quality"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return "", job.EncodeSettings{}, fmt.Errorf("invalid quality: %q", v)
		}
		enc.Quality = q
	}
	if v := r.FormValue("speed_preset"); v != "" {
		enc.SpeedPreset = v
	}
	if v := r.FormValue("scale_percent"); v != "" {
		s, err := strconv.Atoi(v)
		if err != nil {
			return "", job.EncodeSettings{}, fmt.Errorf("invalid scale_percent: %q", v)
		}
		enc.ScalePercent = s
	}
	if v := r.FormValue("output_format"); v != "" {
		enc.OutputFormat = v
	}

	return presetName, enc, nil
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := job.Status(r.URL.Query().Get("status"))

	jobs := h.store.List(status)
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, newJobView(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views, "total": len(views)})
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, ok := h.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, newJobView(j))
}

func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, err := h.orch.Cancel(id)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newJobView(j))
}

func (h *Handlers) RetryJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, err := h.orch.Retry(id)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newJobView(j))
}

func (h *Handlers) ClearJobs(w http.ResponseWriter, r *http.Request) {
	removed := h.orch.ClearFinished()
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// DownloadOutput streams the produced artifact with a save-as filename.
func (h *Handlers) DownloadOutput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, ok := h.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	if j.Status != job.StatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job has no output"})
		return
	}

	content, err := h.blobs.Get(j.OutputPath)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "output unavailable"})
		return
	}

	suffix := "compressed"
	if j.Kind == job.KindRepair {
		suffix = "repaired"
	}
	name := storage.DownloadName(j.FileName, suffix, j.Settings.OutputFormat)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Write(content)
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	writeJSON(w, http.StatusOK, map[string]any{"events": h.events.Since(since)})
}

func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "total": len(records)})
}

func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Clear(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handlers) ExportHistoryCSV(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out, err := history.ExportCSV(records)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="compression_history.csv"`)
	w.Write(out)
}

func (h *Handlers) ExportHistoryXLSX(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out, err := history.ExportXLSX(records)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="compression_history.xlsx"`)
	w.Write(out)
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Load()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) PutSettings(w http.ResponseWriter, r *http.Request) {
	var cfg settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.settings.Save(cfg); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"presets": h.presets.List()})
}

func statusFor(err error) int {
	if err == job.ErrNotFound {
		return http.StatusNotFound
	}
	return http.StatusConflict
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Encode response: %v", err)
	}
}
