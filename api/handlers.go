package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/dag"
	"github.com/kbukum/mediaflow/engine"
	"github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/observability"
	"github.com/kbukum/mediaflow/scheduler"
	"github.com/kbukum/mediaflow/sse"
	"github.com/kbukum/mediaflow/version"
)

const healthPath = "/health"

// Engine is what the API needs from an engine.
type Engine interface {
	Launch(ctx context.Context, name string) (string, error)
	Status(id string) scheduler.Status
	Cancel(id string) bool
	Job(id string) (scheduler.Job, bool)
	Jobs() []scheduler.Job
	Operators() []dag.FactoryInfo
	Pipelines() ([]string, error)
	Health(ctx context.Context) *observability.ServiceHealth
	Events() *sse.Hub
}

// JobResponse is a job as rendered by the API.
type JobResponse struct {
	scheduler.Job
	DurationMS int64 `json:"duration_ms"`
}

func toJobResponse(j scheduler.Job) JobResponse {
	return JobResponse{Job: j, DurationMS: j.Duration().Milliseconds()}
}

type handlers struct {
	engine Engine
}

func (h *handlers) register(r gin.IRouter) {
	r.POST("/pipelines/:name/jobs", h.launch)
	r.GET("/pipelines", h.pipelines)
	r.GET("/jobs", h.jobs)
	r.GET("/jobs/:id", h.job)
	r.DELETE("/jobs/:id", h.cancel)
	r.GET("/jobs/:id/events", h.events)
	r.GET("/operators", h.operators)
	r.GET("/version", h.version)
	r.GET(healthPath, h.health)
}

func (h *handlers) launch(c *gin.Context) {
	id, err := h.engine.Launch(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.Header("Location", "/jobs/"+id)
	if job, ok := h.engine.Job(id); ok {
		respondAccepted(c, toJobResponse(job))
		return
	}
	respondAccepted(c, gin.H{"id": id, "status": h.engine.Status(id)})
}

func (h *handlers) jobs(c *gin.Context) {
	jobs := h.engine.Jobs()
	if status := c.Query("status"); status != "" {
		filtered := jobs[:0:0]
		for _, j := range jobs {
			if string(j.Status) == status {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	out := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = toJobResponse(j)
	}
	respondList(c, out)
}

func (h *handlers) job(c *gin.Context) {
	job, ok := h.engine.Job(c.Param("id"))
	if !ok {
		respondWithError(c, errors.NotFound("job", c.Param("id")))
		return
	}
	respondOK(c, toJobResponse(job))
}

// cancel requests cancellation. Finished jobs yield 409 and unknown ones 404.
func (h *handlers) cancel(c *gin.Context) {
	id := c.Param("id")
	if h.engine.Cancel(id) {
		respondAccepted(c, gin.H{"id": id, "cancelled": true})
		return
	}
	job, ok := h.engine.Job(id)
	if !ok {
		respondWithError(c, errors.NotFound("job", id))
		return
	}
	respondWithError(c, errors.Conflict("job "+id+" is "+string(job.Status)).WithDetail("status", job.Status))
}

// events streams the job's status changes until it finishes. A finished
// job yields its final state and closes at once.
func (h *handlers) events(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.engine.Job(id); !ok {
		respondWithError(c, errors.NotFound("job", id))
		return
	}
	current := func() []sse.Event {
		job, _ := h.engine.Job(id)
		return []sse.Event{engine.JobEvent(job)}
	}
	sse.ServeSSE(h.engine.Events(), c.Writer, c.Request, engine.JobTopic(id)+":"+uuid.NewString(),
		sse.WithInitial(current),
		sse.WithCloseOn(engine.EventJobFinished))
}

func (h *handlers) operators(c *gin.Context) {
	respondList(c, h.engine.Operators())
}

func (h *handlers) pipelines(c *gin.Context) {
	names, err := h.engine.Pipelines()
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondList(c, names)
}

func (h *handlers) version(c *gin.Context) {
	respondOK(c, version.GetVersionInfo())
}

func (h *handlers) health(c *gin.Context) {
	sh := h.engine.Health(c.Request.Context())
	status := http.StatusOK
	if sh.Status == observability.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":     sh.Status,
		"service":    sh.Service,
		"version":    sh.Version,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": sh.Components,
	})
}
