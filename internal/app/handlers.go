package app

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "gfi-bot/internal/errors"
	"gfi-bot/internal/queue"
	"gfi-bot/internal/schema"

	"github.com/gorilla/mux"
)

// healthCheck handles the health check endpoint
func (a *App) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, map[string]string{"status": "ok"})
}

// repoVars extracts the owner and name path variables.
func repoVars(r *http.Request) (owner, name string) {
	vars := mux.Vars(r)
	return vars["owner"], vars["name"]
}

// decodeBody reads a JSON request body. Numbers come back as json.Number so
// integral values survive decoding intact.
func decodeBody(r *http.Request, out *any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(out)
}

// decodeObjectBody reads a JSON request body that must be a single object.
func decodeObjectBody(r *http.Request) (map[string]any, error) {
	var body any
	if err := decodeBody(r, &body); err != nil {
		return nil, err
	}
	m, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("request body must be a JSON object")
	}
	return m, nil
}

// writeServiceError maps a service error onto an HTTP status.
func (a *App) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case stderrors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, msg+": not found")
	case stderrors.Is(err, apperrors.ErrRateLimit):
		writeError(w, http.StatusTooManyRequests, "GitHub rate limit exceeded, please try again later")
	default:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msg, err))
	}
}

// listRepositories handles listing onboarded repositories
func (a *App) listRepositories(w http.ResponseWriter, r *http.Request) {
	sortParam := r.URL.Query().Get("sort")
	if sortParam == "" {
		sortParam = string(schema.RepoSortStars)
	}
	sort, err := schema.ParseRepoSort(sortParam)
	if err != nil {
		var verr *schema.ValidationError
		if stderrors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = 10
	}

	briefs, err := a.service.ListRepositories(r.Context(), sort, perPage, (page-1)*perPage)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to list repositories")
		a.writeServiceError(w, err, "Failed to list repositories")
		return
	}

	result := make([]map[string]any, 0, len(briefs))
	for _, b := range briefs {
		result = append(result, b.Encode())
	}

	a.log.Info().
		Int("repository_count", len(result)).
		Str("sort", string(sort)).
		Msg("Successfully listed repositories")

	writeResult(w, http.StatusOK, result)
}

// getRepositoryDetail handles retrieving one repository with its activity series
func (a *App) getRepositoryDetail(w http.ResponseWriter, r *http.Request) {
	owner, name := repoVars(r)

	detail, err := a.service.GetRepositoryDetail(r.Context(), owner, name)
	if err != nil {
		a.log.Error().
			Err(err).
			Str("owner", owner).
			Str("name", name).
			Msg("Failed to get repository detail")
		a.writeServiceError(w, err, fmt.Sprintf("Repository %s/%s", owner, name))
		return
	}

	writeResult(w, http.StatusOK, detail.Encode())
}

// addRepository handles onboarding a repository and scheduling its first sync
func (a *App) addRepository(w http.ResponseWriter, r *http.Request) {
	owner, name := repoVars(r)

	a.log.Debug().
		Str("owner", owner).
		Str("name", name).
		Msg("Onboarding repository")

	cfg, err := a.service.OnboardRepository(r.Context(), owner, name)
	if err != nil {
		a.log.Error().
			Err(err).
			Str("owner", owner).
			Str("name", name).
			Msg("Failed to onboard repository")
		a.writeServiceError(w, err, fmt.Sprintf("Failed to onboard %s/%s", owner, name))
		return
	}

	jobID, err := a.enqueueSync(queue.JobTypeSync, owner, name)
	if err != nil {
		a.log.Error().
			Err(err).
			Str("owner", owner).
			Str("name", name).
			Msg("Failed to enqueue sync job")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to schedule repository sync: %v", err))
		return
	}

	writeResult(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": "scheduled",
		"config": cfg.Encode(),
	})
}

// removeRepository handles deleting a repository and its data
func (a *App) removeRepository(w http.ResponseWriter, r *http.Request) {
	owner, name := repoVars(r)

	a.log.Debug().
		Str("owner", owner).
		Str("name", name).
		Msg("Removing repository")

	if err := a.service.RemoveRepository(r.Context(), owner, name); err != nil {
		a.log.Error().
			Err(err).
			Str("owner", owner).
			Str("name", name).
			Msg("Failed to remove repository")
		a.writeServiceError(w, err, fmt.Sprintf("Repository %s/%s", owner, name))
		return
	}

	writeResult(w, http.StatusOK, map[string]string{
		"owner": owner,
		"name":  name,
	})
}

// resyncRepository handles scheduling an incremental resync
func (a *App) resyncRepository(w http.ResponseWriter, r *http.Request) {
	owner, name := repoVars(r)

	exists, err := a.service.RepositoryExists(r.Context(), owner, name)
	if err != nil {
		a.writeServiceError(w, err, fmt.Sprintf("Repository %s/%s", owner, name))
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Repository %s/%s is not onboarded", owner, name))
		return
	}

	jobID, err := a.enqueueSync(queue.JobTypeResync, owner, name)
	if err != nil {
		a.log.Error().
			Err(err).
			Str("owner", owner).
			Str("name", name).
			Msg("Failed to enqueue resync job")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to schedule repository resync: %v", err))
		return
	}

	writeResult(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": "scheduled",
		"owner":  owner,
		"name":   name,
	})
}

// enqueueSync creates a sync or resync job for a repository.
func (a *App) enqueueSync(jobType queue.JobType, owner, name string) (string, error) {
	payload, err := json.Marshal(queue.SyncPayload{Owner: owner, Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to marshal sync payload: %w", err)
	}

	job := &queue.Job{Type: jobType, Payload: payload}
	if err := a.queue.Enqueue(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// listGFIs handles retrieving GFI predictions for a repository
func (a *App) listGFIs(w http.ResponseWriter, r *http.Request) {
	owner, name := repoVars(r)

	gfis, err := a.service.ListGFIs(r.Context(), owner, name)
	if err != nil {
		a.log.Error().
			Err(err).
			Str("owner", owner).
			Str("name", name).
			Msg("Failed to list predictions")
		a.writeServiceError(w, err, "Failed to list predictions")
		return
	}

	result := make([]map[string]any, 0, len(gfis))
	for _, g := range gfis {
		result = append(result, g.Encode())
	}
	writeResult(w, http.StatusOK, result)
}

// putGFIs handles storing a batch of GFI predictions
func (a *App) putGFIs(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err))
		return
	}

	gfis, err := schema.AsList(schema.ValidateGFIBrief)(body)
	if err != nil {
		var verr *schema.ValidationError
		if stderrors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.service.SaveGFIPredictions(r.Context(), gfis); err != nil {
		a.log.Error().Err(err).Msg("Failed to save predictions")
		a.writeServiceError(w, err, "Failed to save predictions")
		return
	}

	writeResult(w, http.StatusOK, map[string]any{"saved": len(gfis)})
}

// getTrainingResult handles retrieving the latest model metrics
func (a *App) getTrainingResult(w http.ResponseWriter, r *http.Request) {
	owner, name := repoVars(r)

	result, err := a.service.GetTrainingResult(r.Context(), owner, name)
	if err != nil {
		a.writeServiceError(w, err, fmt.Sprintf("Training result for %s/%s", owner, name))
		return
	}
	writeResult(w, http.StatusOK, result.Encode())
}

// putTrainingResult handles storing model metrics reported by a training run
func (a *App) putTrainingResult(w http.ResponseWriter, r *http.Request) {
	owner, name := repoVars(r)

	raw, err := decodeObjectBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err))
		return
	}

	result, err := schema.ValidateTrainingResult(raw)
	if err != nil {
		var verr *schema.ValidationError
		if stderrors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if result.Owner != owner || result.Name != name {
		writeError(w, http.StatusBadRequest, "Body owner/name must match the request path")
		return
	}

	if err := a.service.SaveTrainingResult(r.Context(), result); err != nil {
		a.writeServiceError(w, err, "Failed to save training result")
		return
	}
	writeResult(w, http.StatusOK, result.Encode())
}

// getConfig handles retrieving the per-repository config
func (a *App) getConfig(w http.ResponseWriter, r *http.Request) {
	owner, name := repoVars(r)

	cfg, err := a.service.GetConfig(r.Context(), owner, name)
	if err != nil {
		a.writeServiceError(w, err, fmt.Sprintf("Config for %s/%s", owner, name))
		return
	}
	writeResult(w, http.StatusOK, cfg.Encode())
}

// putConfig handles replacing the per-repository config
func (a *App) putConfig(w http.ResponseWriter, r *http.Request) {
	owner, name := repoVars(r)

	raw, err := decodeObjectBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err))
		return
	}

	cfg, err := schema.ValidateConfig(raw)
	if err != nil {
		var verr *schema.ValidationError
		if stderrors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.service.SaveConfig(r.Context(), owner, name, cfg); err != nil {
		a.writeServiceError(w, err, "Failed to save config")
		return
	}
	writeResult(w, http.StatusOK, cfg.Encode())
}

// recordSearch handles recording a user search event
func (a *App) recordSearch(w http.ResponseWriter, r *http.Request) {
	owner, name := repoVars(r)

	raw, err := decodeObjectBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err))
		return
	}

	search, err := schema.ValidateUserSearchedRepo(raw)
	if err != nil {
		var verr *schema.ValidationError
		if stderrors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if search.Owner != owner || search.Name != name {
		writeError(w, http.StatusBadRequest, "Body owner/name must match the request path")
		return
	}

	count, err := a.service.RecordSearch(r.Context(), search)
	if err != nil {
		a.writeServiceError(w, err, "Failed to record search")
		return
	}
	writeResult(w, http.StatusOK, map[string]any{
		"owner": owner,
		"name":  name,
		"count": count,
	})
}

// getUserInfo handles looking up a GitHub user
func (a *App) getUserInfo(w http.ResponseWriter, r *http.Request) {
	login := mux.Vars(r)["login"]

	info, err := a.service.GetUserInfo(r.Context(), login)
	if err != nil {
		a.log.Error().
			Err(err).
			Str("login", login).
			Msg("Failed to fetch user")
		a.writeServiceError(w, err, fmt.Sprintf("User %s", login))
		return
	}
	writeResult(w, http.StatusOK, info.Encode())
}

// handleWebhook handles GitHub App installation events
func (a *App) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if secret := a.cfg.GitHub.WebhookSecret; secret != "" {
		if !verifySignature(secret, body, r.Header.Get("X-Hub-Signature-256")) {
			a.log.Warn().Msg("Webhook signature verification failed")
			writeError(w, http.StatusUnauthorized, "Invalid webhook signature")
			return
		}
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err))
		return
	}
	m, ok := raw.(map[string]any)
	if !ok {
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}

	event, err := schema.ValidateGitHubAppWebhookResponse(m)
	if err != nil {
		var verr *schema.ValidationError
		if stderrors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.service.ApplyWebhookEvent(r.Context(), event); err != nil {
		a.log.Error().
			Err(err).
			Str("action", event.Action).
			Msg("Failed to apply webhook event")
		a.writeServiceError(w, err, "Failed to apply webhook event")
		return
	}

	writeResult(w, http.StatusOK, map[string]string{"action": event.Action})
}

// verifySignature checks a GitHub X-Hub-Signature-256 header.
func verifySignature(secret string, body []byte, header string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header[len(prefix):]))
}

// getJobStatus handles retrieving the status of one background job
func (a *App) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]

	status, err := a.queue.GetStatus(jobID)
	if err != nil {
		a.log.Error().
			Err(err).
			Str("job_id", jobID).
			Msg("Failed to get job status")

		if strings.Contains(err.Error(), "job not found") {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Job %s not found", jobID))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get job status: %v", err))
		return
	}

	writeResult(w, http.StatusOK, map[string]any{
		"job_id": jobID,
		"status": status,
	})
}

// listJobs handles retrieving all jobs
func (a *App) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.queue.GetJobs()
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to get jobs")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get jobs: %v", err))
		return
	}

	writeResult(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
