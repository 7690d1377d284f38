package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterRoutes 注册全部管理API路由
func (r *Router) RegisterRoutes(h *Handler) {
	r.Handle("/api/users", h.Users)
	r.Handle("/api/users/", h.Users)

	r.Handle("/api/groups", h.Groups)
	r.Handle("/api/groups/", h.Groups)

	r.Handle("/api/doors", h.Doors)
	r.Handle("/api/doors/", h.Doors)
	r.Handle("/api/devices", h.Devices)

	r.Handle("/api/permissions", h.Permissions)
	r.Handle("/api/permissions/", h.Permissions)

	r.Handle("/api/schedules", h.Schedules)
	r.Handle("/api/schedules/", h.Schedules)

	r.Handle("/api/scenarios", h.Scenarios)
	r.Handle("/api/scenarios/", h.Scenarios)

	r.Handle("/api/check_access", h.CheckAccess)
	r.Handle("/api/events", h.Events)

	r.Handle("/api/emergency/", h.Emergency)

	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
}
