package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jonny/interactiond/internal/domain/model"
	"github.com/jonny/interactiond/internal/domain/port/outbound"
	"github.com/jonny/interactiond/pkg/apierror"
)

const maxAuditPageSize = 200

type auditPage struct {
	Items []model.AuditRecord `json:"items"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Size  int                 `json:"size"`
}

// AuditHandler lists recent interaction audit records, newest first.
//
// Query parameters: page, size, kind, route, guild, outcome and since (an
// RFC 3339 timestamp).
func AuditHandler(repo outbound.AuditRepository, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, err := intParam(q.Get("page"), 0)
		if err != nil || page < 0 {
			apierror.Write(w, apierror.BadRequest("page must be a non-negative integer"))
			return
		}
		size, err := intParam(q.Get("size"), 50)
		if err != nil || size <= 0 || size > maxAuditPageSize {
			apierror.Write(w, apierror.BadRequest("size must be between 1 and 200"))
			return
		}

		filter := outbound.AuditFilter{
			Kind:     q.Get("kind"),
			RouteKey: q.Get("route"),
			GuildID:  q.Get("guild"),
			Outcome:  model.AuditOutcome(q.Get("outcome")),
		}
		if v := q.Get("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				apierror.Write(w, apierror.BadRequest("since must be an RFC 3339 timestamp"))
				return
			}
			filter.Since = &since
		}

		res, err := repo.List(r.Context(), filter, outbound.PageRequest{Page: page, Size: size, Desc: true})
		if err != nil {
			logger.Error("listing interaction audit failed", "error", err)
			apierror.Write(w, apierror.Wrap(http.StatusInternalServerError, "Could not list audit records", err))
			return
		}

		items := res.Items
		if items == nil {
			items = []model.AuditRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(auditPage{Items: items, Total: res.TotalCount, Page: res.Page, Size: res.Size})
	}
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
