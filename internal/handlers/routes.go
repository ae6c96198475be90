package handlers

import "net/http"

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Subscriptions SubscriptionStore
	Videos        VideoStore
	Media         MediaManager
	LoginLimiter  RateLimiter
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	authH := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Media: deps.Media}
	users := UserHandler{Users: deps.Users, Subscriptions: deps.Subscriptions, Media: deps.Media}
	videos := VideoHandler{Videos: deps.Videos, Media: deps.Media}
	subs := SubscriptionHandler{Users: deps.Users, Subscriptions: deps.Subscriptions}

	authed := RequireAuth(deps.Sessions)
	optional := OptionalAuth(deps.Sessions)

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/users/register", authH.Register)
	mux.HandleFunc("POST /api/v1/users/login", withRateLimit(deps.LoginLimiter, "login", authH.Login))
	mux.HandleFunc("POST /api/v1/users/logout", authed(authH.Logout))
	mux.HandleFunc("POST /api/v1/users/refresh", authH.Refresh)

	mux.HandleFunc("GET /api/v1/users/me", authed(users.Me))
	mux.HandleFunc("PATCH /api/v1/users/me", authed(users.UpdateAccount))
	mux.HandleFunc("POST /api/v1/users/change-password", authed(users.ChangePassword))
	mux.HandleFunc("PATCH /api/v1/users/me/avatar", authed(users.UpdateAvatar))
	mux.HandleFunc("PATCH /api/v1/users/me/cover", authed(users.UpdateCoverImage))
	mux.HandleFunc("GET /api/v1/users/channel/{username}", optional(users.ChannelProfile))

	mux.HandleFunc("GET /api/v1/videos", videos.List)
	mux.HandleFunc("POST /api/v1/videos", authed(videos.Publish))
	mux.HandleFunc("GET /api/v1/videos/{videoId}", videos.Get)
	mux.HandleFunc("PATCH /api/v1/videos/{videoId}", authed(videos.UpdateDetails))
	mux.HandleFunc("DELETE /api/v1/videos/{videoId}", authed(videos.Delete))
	mux.HandleFunc("PATCH /api/v1/videos/{videoId}/thumbnail", authed(videos.UpdateThumbnail))
	mux.HandleFunc("PATCH /api/v1/videos/{videoId}/media", authed(videos.UpdateMedia))
	mux.HandleFunc("PATCH /api/v1/videos/{videoId}/publish", authed(videos.TogglePublish))

	mux.HandleFunc("POST /api/v1/subscriptions/{channelId}/toggle", authed(subs.Toggle))
	mux.HandleFunc("GET /api/v1/subscriptions/{channelId}/subscribers", subs.ListSubscribers)
	mux.HandleFunc("GET /api/v1/subscriptions/{subscriberId}/channels", subs.ListSubscribedChannels)
}

func withRateLimit(limiter RateLimiter, scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRequest(limiter, r, scope) {
			respondError(r.Context(), w, TooManyRequests("too many attempts, slow down"))
			return
		}
		next(w, r)
	}
}
