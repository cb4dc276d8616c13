package handler

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airdash/internal/airquality"
	"github.com/breatheroute/airdash/internal/api/response"
	"github.com/breatheroute/airdash/internal/dashboard"
	"github.com/breatheroute/airdash/internal/export"
	"github.com/breatheroute/airdash/internal/notice"
	"github.com/breatheroute/airdash/internal/settings"
)

// ExportHandler serves the current reading as downloadable files.
type ExportHandler struct {
	orchestrator *dashboard.Orchestrator
	resolver     airquality.Resolver
	store        *settings.Store
	notices      notice.Poster
	dir          string
	logger       zerolog.Logger
}

// ExportConfig holds the dependencies of an ExportHandler.
type ExportConfig struct {
	Orchestrator *dashboard.Orchestrator
	Resolver     airquality.Resolver
	Store        *settings.Store
	Notices      notice.Poster
	// Dir receives a copy of every CSV served.
	Dir    string
	Logger zerolog.Logger
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(cfg ExportConfig) *ExportHandler {
	if cfg.Resolver == nil {
		cfg.Resolver = airquality.NewResolver()
	}
	return &ExportHandler{
		orchestrator: cfg.Orchestrator,
		resolver:     cfg.Resolver,
		store:        cfg.Store,
		notices:      cfg.Notices,
		dir:          cfg.Dir,
		logger:       cfg.Logger,
	}
}

// Export handles GET /v1/export/{file}, where file is pollutants.csv,
// hourly.csv or hourly.parquet.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	ext := path.Ext(file)
	dataset := strings.TrimSuffix(file, ext)

	if dataset != export.DatasetPollutants && dataset != export.DatasetHourly {
		response.NotFound(w, r, "unknown dataset: "+dataset)
		return
	}

	snap := h.orchestrator.Snapshot()
	if snap.Reading == nil {
		response.NotFound(w, r, "no reading loaded yet")
		return
	}
	reading := *snap.Reading

	switch {
	case ext == ".csv":
		h.csv(w, r, dataset, reading, snap.Series)
	case ext == ".parquet" && dataset == export.DatasetHourly:
		h.parquet(w, r, reading, snap.Series)
	default:
		response.NotFound(w, r, "unsupported export format: "+file)
	}
}

func (h *ExportHandler) csv(w http.ResponseWriter, r *http.Request, dataset string, reading airquality.Reading, series airquality.HourlySeries) {
	var rows []export.Record
	if dataset == export.DatasetPollutants {
		rows = export.PollutantRecords(reading, h.resolver)
	} else {
		rows = export.SeriesRecords(series)
	}

	delim := h.store.Settings(r.Context()).CSVDelimiter
	content := export.ToCSV(rows, delim)
	name := export.Filename(dataset, reading.LocationName)

	if content == "" {
		response.NotFound(w, r, export.ErrEmptyExport.Error())
		return
	}

	if h.dir != "" {
		saved, err := export.WriteFile(h.dir, name, content)
		if err != nil {
			h.logger.Error().Err(err).Str("file", name).Msg("failed to save export")
			h.post(notice.KindInfo, "Export could not be saved on the server.")
		} else {
			h.logger.Info().Str("path", saved).Int("rows", len(rows)).Msg("export saved")
		}
	}

	response.Attachment(w, r, "text/csv; charset=utf-8", name, func(wr io.Writer) error {
		_, err := io.WriteString(wr, content)
		return err
	})
}

func (h *ExportHandler) parquet(w http.ResponseWriter, r *http.Request, reading airquality.Reading, series airquality.HourlySeries) {
	if series.Len() == 0 {
		response.NotFound(w, r, export.ErrEmptyExport.Error())
		return
	}

	name := strings.TrimSuffix(export.Filename(export.DatasetHourly, reading.LocationName), ".csv") + ".parquet"
	response.Attachment(w, r, "application/vnd.apache.parquet", name, func(wr io.Writer) error {
		err := export.WriteSeriesParquet(wr, reading, series)
		if err != nil && !errors.Is(err, export.ErrEmptyExport) {
			h.logger.Error().Err(err).Msg("parquet export failed")
		}
		return err
	})
}

func (h *ExportHandler) post(kind notice.Kind, msg string) {
	if h.notices != nil {
		h.notices.Post(kind, msg)
	}
}
