package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/expiry-tracker/api/responses"
	"github.com/angelmondragon/expiry-tracker/internal/cron"
	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

// Scheduler is the job control surface exposed over HTTP.
type Scheduler interface {
	Jobs() []cron.JobInfo
	RunNow(ctx context.Context, name string) error
}

func ListJobs(scheduler Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"jobs": scheduler.Jobs()})
	}
}

// RunJob executes the named job synchronously. The run survives the client
// disconnecting.
func RunJob(scheduler Scheduler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "name"))
		if name == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "job name required"))
			return
		}
		ctx := logg.WithJob(r.Context(), name)
		if err := scheduler.RunNow(context.WithoutCancel(ctx), name); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"job": name, "ran": true})
	}
}
