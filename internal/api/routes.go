package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kestrane/milepost/internal/escrow"
	"github.com/kestrane/milepost/internal/lifecycle"
	"github.com/kestrane/milepost/internal/models"
	"github.com/kestrane/milepost/internal/plan"
	"github.com/kestrane/milepost/internal/workflow"
)

// actorHeader identifies the caller; the upstream gateway is responsible
// for having authenticated it.
const actorHeader = "X-Actor-ID"

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, co *workflow.Coordinator) {
	router.GET("/api/healthz", handleHealth)

	router.POST("/api/jobs/:id/plan", handleCreatePlan(co))
	router.GET("/api/jobs/:id/milestones", handleListMilestones(co))
	router.GET("/api/jobs/:id/ledger", handleLedger(co))
	router.GET("/api/jobs/:id/events", handleListEvents(co))

	router.POST("/api/milestones/:id/start", handleTransition(co, "start"))
	router.POST("/api/milestones/:id/request-approval", handleTransition(co, "request-approval"))
	router.POST("/api/milestones/:id/approve", handleApprove(co))
	router.POST("/api/milestones/:id/reject", handleTransition(co, "reject"))
	router.POST("/api/milestones/:id/resume", handleTransition(co, "resume"))
}

// draftPayload is one proposed milestone in a plan request.
type draftPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Percentage  int        `json:"percentage"`
	DueDate     *time.Time `json:"due_date"`
}

// planPayload is the body of a create-plan request.
type planPayload struct {
	Milestones []draftPayload `json:"milestones"`
}

// feedbackPayload is the optional body of approve/reject requests.
type feedbackPayload struct {
	Feedback string `json:"feedback"`
}

// milestoneView is the JSON shape of a milestone.
type milestoneView struct {
	ID          string     `json:"id"`
	JobID       string     `json:"job_id"`
	Position    int        `json:"position"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Percentage  int        `json:"percentage"`
	AmountCents int64      `json:"amount_cents"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status"`
	Feedback    string     `json:"feedback,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

// eventView is the JSON shape of an audit event.
type eventView struct {
	ID          uint      `json:"id"`
	JobID       string    `json:"job_id"`
	MilestoneID string    `json:"milestone_id,omitempty"`
	ActorID     string    `json:"actor_id"`
	ActorRole   string    `json:"actor_role,omitempty"`
	Action      string    `json:"action"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Feedback    string    `json:"feedback,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewMilestone(m models.Milestone) milestoneView {
	return milestoneView{
		ID:          m.ID,
		JobID:       m.JobID,
		Position:    m.Position,
		Title:       m.Title,
		Description: m.Description,
		Percentage:  m.Percentage,
		AmountCents: m.AmountCents,
		DueDate:     m.DueDate,
		Status:      m.Status,
		Feedback:    m.Feedback,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		ApprovedAt:  m.ApprovedAt,
	}
}

func viewMilestones(ms []models.Milestone) []milestoneView {
	views := make([]milestoneView, len(ms))
	for i, m := range ms {
		views[i] = viewMilestone(m)
	}
	return views
}

func viewEvents(evs []models.EscrowEvent) []eventView {
	views := make([]eventView, len(evs))
	for i, ev := range evs {
		views[i] = eventView{
			ID:          ev.ID,
			JobID:       ev.JobID,
			MilestoneID: ev.MilestoneID,
			ActorID:     ev.ActorID,
			ActorRole:   ev.ActorRole,
			Action:      ev.Action,
			AmountCents: ev.AmountCents,
			Feedback:    ev.Feedback,
			CreatedAt:   ev.CreatedAt,
		}
	}
	return views
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleCreatePlan(co *workflow.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := requireActor(c)
		if !ok {
			return
		}

		var payload planPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
			return
		}

		drafts := make([]plan.Draft, len(payload.Milestones))
		for i, d := range payload.Milestones {
			drafts[i] = plan.Draft{
				Title:       d.Title,
				Description: d.Description,
				Percentage:  d.Percentage,
				DueDate:     d.DueDate,
			}
		}

		ms, err := co.CreatePlan(actorID, c.Param("id"), drafts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"milestones": viewMilestones(ms)})
	}
}

func handleListMilestones(co *workflow.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ms, err := co.Milestones(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"milestones": viewMilestones(ms)})
	}
}

func handleLedger(co *workflow.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := co.Ledger(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func handleListEvents(co *workflow.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		evs, err := co.Events(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": viewEvents(evs)})
	}
}

// handleTransition covers the non-releasing workflow actions.
func handleTransition(co *workflow.Coordinator, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := requireActor(c)
		if !ok {
			return
		}
		milestoneID := c.Param("id")

		var m *models.Milestone
		var err error
		switch action {
		case "start":
			m, err = co.Start(actorID, milestoneID)
		case "request-approval":
			m, err = co.RequestApproval(actorID, milestoneID)
		case "reject":
			payload := readFeedback(c)
			m, err = co.Reject(actorID, milestoneID, payload)
		case "resume":
			m, err = co.Resume(actorID, milestoneID)
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"milestone": viewMilestone(*m)})
	}
}

func handleApprove(co *workflow.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := requireActor(c)
		if !ok {
			return
		}

		res, err := co.Approve(actorID, c.Param("id"), readFeedback(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"milestone": viewMilestone(res.Milestone),
			"ledger":    res.Ledger,
		})
	}
}

// requireActor extracts the caller identity, writing a 400 when missing.
func requireActor(c *gin.Context) (string, bool) {
	actorID := c.GetHeader(actorHeader)
	if actorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": actorHeader + " header is required"})
		return "", false
	}
	return actorID, true
}

// readFeedback parses the optional feedback body, tolerating an empty one.
func readFeedback(c *gin.Context) string {
	var payload feedbackPayload
	if c.Request.Body != nil {
		_ = c.ShouldBindJSON(&payload)
	}
	return payload.Feedback
}

// writeError maps workflow errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrJobNotFound), errors.Is(err, workflow.ErrMilestoneNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, plan.ErrInvalidPlan):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, escrow.ErrAlreadyReleased),
		errors.Is(err, workflow.ErrPlanLocked),
		errors.Is(err, workflow.ErrPlanConflict),
		errors.Is(err, workflow.ErrJobNotAssigned),
		errors.Is(err, workflow.ErrJobClosed):
		status = http.StatusConflict
	case errors.Is(err, escrow.ErrLedgerOverrun):
		// Data-integrity alarm: surface as a server error, never a
		// user-correctable one.
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
