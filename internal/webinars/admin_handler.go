package webinars

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/middleware"
	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/store"
	"github.com/aura-webinar/portal/pkg/response"
)

// StatusView reports the result of an admin action.
type StatusView struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Op     store.OpState `json:"op"`
}

// AdminList handles GET /api/admin/webinars.
func (h *Handler) AdminList(c *gin.Context) {
	st, _ := h.storeFor(c)
	ctx := c.Request.Context()

	if err := st.FetchAdminWebinars(ctx); err != nil {
		h.fail(c, "admin list", err)
		return
	}
	list := st.AdminWebinars()
	for i := range list {
		if h.resolver != nil {
			list[i].ImageURL = h.resolver.Resolve(ctx, list[i].ImageURL)
		}
	}
	response.OK(c, list)
}

// Create handles POST /api/admin/webinars.
func (h *Handler) Create(c *gin.Context) {
	var in models.WebinarInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	st, _ := h.storeFor(c)
	w, err := st.CreateWebinar(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "create webinar", err)
		return
	}
	h.logger.Info("webinar created", zap.String("webinar_id", w.ID), zap.String("user_id", c.GetString(middleware.ContextUserID)))
	response.Created(c, w)
}

// Update handles PUT /api/admin/webinars/:id.
func (h *Handler) Update(c *gin.Context) {
	var in models.WebinarInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	st, _ := h.storeFor(c)
	w, err := st.UpdateWebinar(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, "update webinar", err)
		return
	}
	response.OK(c, w)
}

// Publish handles PATCH /api/admin/webinars/:id/publish.
func (h *Handler) Publish(c *gin.Context) {
	h.setPublished(c, true)
}

// Unpublish handles PATCH /api/admin/webinars/:id/unpublish.
func (h *Handler) Unpublish(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *Handler) setPublished(c *gin.Context, published bool) {
	st, _ := h.storeFor(c)
	id := c.Param("id")
	op, status := store.OpUnpublish, "unpublished"
	var err error
	if published {
		op, status = store.OpPublish, "published"
		err = st.PublishWebinar(c.Request.Context(), id)
	} else {
		err = st.UnpublishWebinar(c.Request.Context(), id)
	}
	if err != nil {
		h.fail(c, op, err)
		return
	}
	response.OK(c, StatusView{ID: id, Status: status, Op: st.Op(store.OpKey(op, id))})
}

// Applicants handles GET /api/admin/webinars/:id/applicants.
func (h *Handler) Applicants(c *gin.Context) {
	st, _ := h.storeFor(c)
	id := c.Param("id")

	if err := st.FetchWebinarApplicants(c.Request.Context(), id); err != nil {
		h.fail(c, "list applicants", err)
		return
	}
	response.OK(c, st.WebinarApplicants(id))
}

// Approve handles PATCH /api/admin/applications/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	h.review(c, models.StatusApproved)
}

// Reject handles PATCH /api/admin/applications/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	h.review(c, models.StatusRejected)
}

func (h *Handler) review(c *gin.Context, status models.ApplicationStatus) {
	st, _ := h.storeFor(c)
	id := c.Param("id")
	op := store.OpReject
	var err error
	if status == models.StatusApproved {
		op = store.OpApprove
		err = st.ApproveApplication(c.Request.Context(), id)
	} else {
		err = st.RejectApplication(c.Request.Context(), id)
	}
	if err != nil {
		h.fail(c, op, err)
		return
	}
	response.OK(c, StatusView{ID: id, Status: string(status), Op: st.Op(store.OpKey(op, id))})
}
