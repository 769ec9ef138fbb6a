package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/collab-workspace/domain/apperr"
	"github.com/example/collab-workspace/modules/auth"
	"github.com/example/collab-workspace/modules/broadcast"
	"github.com/example/collab-workspace/modules/project"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// authorizationLocal carries the Authorization header across the upgrade.
const authorizationLocal = "ws_authorization"

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	m.app.Get("/health", m.healthHandler)
	m.app.Get("/metrics", adaptor.HTTPHandler(m.hub.Metrics().Handler()))

	// WebSocket endpoint
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals(authorizationLocal, c.Get(fiber.HeaderAuthorization))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))

	v1 := m.app.Group("/api/v1")
	requireAuth := AuthMiddleware(m.authAdapter)

	users := v1.Group("/users")
	users.Post("/register", m.register)
	users.Post("/login", m.login)
	users.Get("/profile", requireAuth, m.profile)
	users.Get("/me", requireAuth, m.profile)
	users.Get("/logout", requireAuth, m.logout)
	users.Post("/logout", requireAuth, m.logout)
	users.Get("/all", requireAuth, m.listUsers)

	projects := v1.Group("/projects", requireAuth)
	projects.Post("/create", m.createProject)
	projects.Get("/all", m.listProjects)
	projects.Put("/add-user", m.addUsers)
	projects.Put("/add-user-by-email", m.addUserByEmail)
	projects.Get("/get-project/:projectId", m.getProject)
	projects.Put("/update-file-tree", m.updateFileTree)

	messages := v1.Group("/messages", requireAuth)
	messages.Get("/:projectId", m.messageHistory)
	messages.Post("/", m.postMessage)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":      "api",
			"connections": m.hub.ConnCount(),
		},
	})
}

// register handles POST /api/v1/users/register.
func (m *APIModule) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	user, err := m.authAdapter.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return m.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// login handles POST /api/v1/users/login. The token is returned in the body
// and also set as an HTTP-only cookie.
func (m *APIModule) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := m.authAdapter.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return m.writeError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     TokenCookieName,
		Value:    resp.AccessToken,
		Expires:  resp.ExpiresAt,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(LoginResponse{
		User:        UserResponse{ID: resp.UserID, Email: resp.Email},
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		ExpiresIn:   resp.ExpiresIn,
		ExpiresAt:   resp.ExpiresAt,
	})
}

// profile handles GET /api/v1/users/profile.
func (m *APIModule) profile(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := m.authAdapter.GetUser(c.UserContext(), claims.UserID)
	if err != nil {
		return m.writeError(c, err)
	}

	return c.JSON(UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// logout revokes the presented credential and clears the cookie. The cookie
// is only cleared once the revocation is recorded.
func (m *APIModule) logout(c *fiber.Ctx) error {
	token, _ := c.Locals(TokenContextKey).(string)
	if token == "" {
		return unauthorized(c)
	}

	if err := m.authAdapter.Logout(c.UserContext(), token); err != nil {
		return m.writeError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// listUsers handles GET /api/v1/users/all.
func (m *APIModule) listUsers(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	users, err := m.authAdapter.ListUsers(c.UserContext(), claims.UserID)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(UserListResponse{Users: users})
}

// createProject handles POST /api/v1/projects/create.
func (m *APIModule) createProject(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	created, err := m.projectAdapter.Create(c.UserContext(), req.Name, claims.UserID)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// listProjects handles GET /api/v1/projects/all.
func (m *APIModule) listProjects(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	projects, err := m.projectAdapter.ListForUser(c.UserContext(), claims.UserID)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(fiber.Map{"projects": projects})
}

// addUsers handles PUT /api/v1/projects/add-user.
func (m *APIModule) addUsers(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req AddUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.ProjectID == "" || len(req.Users) == 0 {
		return badRequest(c, "projectId and at least one user are required")
	}

	updated, err := m.projectAdapter.AddMembers(c.UserContext(), req.ProjectID, claims.UserID, req.Users)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(updated)
}

// addUserByEmail handles PUT /api/v1/projects/add-user-by-email.
func (m *APIModule) addUserByEmail(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req AddUserByEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.ProjectID == "" || strings.TrimSpace(req.Email) == "" {
		return badRequest(c, "projectId and email are required")
	}

	updated, err := m.projectAdapter.AddMemberByEmail(c.UserContext(), req.ProjectID, claims.UserID, req.Email)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(updated)
}

// getProject handles GET /api/v1/projects/get-project/:projectId.
func (m *APIModule) getProject(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	found, err := m.projectAdapter.Get(c.UserContext(), c.Params("projectId"), claims.UserID)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(found)
}

// updateFileTree handles PUT /api/v1/projects/update-file-tree.
func (m *APIModule) updateFileTree(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req UpdateFileTreeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.ProjectID == "" || len(req.FileTree) == 0 {
		return badRequest(c, "projectId and fileTree are required")
	}

	updated, err := m.projectAdapter.UpdateFileTree(c.UserContext(), req.ProjectID, claims.UserID, req.FileTree)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(updated)
}

// messageHistory handles GET /api/v1/messages/:projectId.
func (m *APIModule) messageHistory(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	projectID := c.Params("projectId")
	if _, err := m.projectAdapter.Get(c.UserContext(), projectID, claims.UserID); err != nil {
		return m.writeError(c, err)
	}

	history, err := m.chatAdapter.History(c.UserContext(), projectID)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(fiber.Map{"projectId": projectID, "messages": history})
}

// postMessage handles POST /api/v1/messages. The room receives the message
// through the event bus once it is stored.
func (m *APIModule) postMessage(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req PostMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.ProjectID == "" || req.Message == "" {
		return badRequest(c, "projectId and message are required")
	}

	if _, err := m.projectAdapter.Get(c.UserContext(), req.ProjectID, claims.UserID); err != nil {
		return m.writeError(c, err)
	}

	msg, err := m.chatAdapter.Append(c.UserContext(), req.ProjectID, claims.UserID, req.Message)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// upgradedRequest is the part of an upgraded connection the handshake is read from.
type upgradedRequest interface {
	Query(key string, defaultValue ...string) string
	Locals(key string, value ...interface{}) interface{}
}

// handshakeFrom reads the credential and project from the upgrade request.
// Browsers cannot set headers on a WebSocket, so the token query parameter
// comes first and the Authorization header saved before the upgrade is the
// fallback.
func handshakeFrom(r upgradedRequest) broadcast.Handshake {
	authorization, _ := r.Locals(authorizationLocal).(string)
	return broadcast.Handshake{
		Token:               r.Query("token"),
		AuthorizationHeader: authorization,
		ProjectID:           r.Query("projectId"),
	}
}

// handleWebSocket handles WebSocket connections at /ws.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	conn, err := m.hub.Open(c)
	if err != nil {
		_ = c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting_down"))
		return
	}
	defer conn.Close()

	// Admit closes rejected connections itself.
	identity, err := m.hub.Admit(context.Background(), conn, handshakeFrom(c))
	if err != nil {
		return
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Debug("Client closed connection", "connID", conn.ID(), "userID", identity.UserID)
			} else {
				select {
				case <-conn.Done():
				default:
					m.logger.Warn("WebSocket read failed", "connID", conn.ID(), "error", err)
				}
			}
			return
		}

		// Failures were already reported to the client.
		_ = m.hub.HandleInbound(context.Background(), conn, data)
	}
}

// writeError renders err with the status its kind maps to.
func (m *APIModule) writeError(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	code := apperr.Code(err)

	switch {
	case errors.Is(err, auth.ErrUserExists), errors.Is(err, project.ErrProjectExists):
		status, code = fiber.StatusConflict, "conflict"
	case status == fiber.StatusInternalServerError:
		m.logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(status).JSON(ErrorResponse{
			Error:   code,
			Message: "Internal server error",
		})
	case status == fiber.StatusServiceUnavailable:
		m.logger.Warn("Backing store unavailable", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: "Authentication required",
	})
}
