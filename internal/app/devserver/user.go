package devserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"storykeeper/internal/domain/story"
)

// envelope mirrors the story service's response wrapper exactly. Every
// endpoint answers in this shape, success or failure.
type envelope struct {
	Error       bool               `json:"error"`
	Message     string             `json:"message"`
	LoginResult *story.LoginResult `json:"loginResult,omitempty"`
	ListStory   []*story.Story     `json:"listStory,omitempty"`
	Story       *story.Story       `json:"story,omitempty"`
	ID          string             `json:"id,omitempty"`
}

func errorEnvelope(message string) envelope {
	return envelope{Error: true, Message: message}
}

type UserHandler struct {
	store      *Store
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewUserHandler(store *Store, log *slog.Logger, middleware huma.Middlewares) *UserHandler {
	return &UserHandler{
		store:      store,
		log:        log,
		middleware: middleware,
	}
}

func (h *UserHandler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
	huma.Register(api, h.loginOp(), h.login)
}

func (h *UserHandler) registerOp() huma.Operation {
	return huma.Operation{
		OperationID:   "user-register",
		Method:        http.MethodPost,
		Path:          "/v1/register",
		Summary:       "Register a new user",
		Tags:          []string{"auth"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}

func (h *UserHandler) loginOp() huma.Operation {
	return huma.Operation{
		OperationID: "user-login",
		Method:      http.MethodPost,
		Path:        "/v1/login",
		Summary:     "Authenticate and mint a session token",
		Tags:        []string{"auth"},
		Middlewares: h.middleware,
	}
}

type registerInput struct {
	Body story.RegisterRequest
}

type registerOutput struct {
	Status int
	Body   envelope
}

func (h *UserHandler) register(_ context.Context, input *registerInput) (*registerOutput, error) {
	req := input.Body
	if req.Name == "" || req.Email == "" {
		return &registerOutput{
			Status: http.StatusBadRequest,
			Body:   errorEnvelope(`"name" and "email" are required`),
		}, nil
	}
	if len(req.Password) < 8 {
		return &registerOutput{
			Status: http.StatusBadRequest,
			Body:   errorEnvelope(`"password" length must be at least 8 characters long`),
		}, nil
	}

	if err := h.store.Register(req.Name, req.Email, req.Password); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return &registerOutput{
				Status: http.StatusBadRequest,
				Body:   errorEnvelope("Email is already taken"),
			}, nil
		}
		h.log.Error("register failed", "error", err)
		return &registerOutput{
			Status: http.StatusInternalServerError,
			Body:   errorEnvelope("Internal server error"),
		}, nil
	}

	return &registerOutput{Body: envelope{Message: "User created"}}, nil
}

type loginInput struct {
	Body story.LoginRequest
}

type loginOutput struct {
	Status int
	Body   envelope
}

func (h *UserHandler) login(_ context.Context, input *loginInput) (*loginOutput, error) {
	result, err := h.store.Authenticate(input.Body.Email, input.Body.Password)
	if err != nil {
		message := "User not found"
		if errors.Is(err, ErrWrongPassword) {
			message = "Invalid password"
		}
		return &loginOutput{
			Status: http.StatusUnauthorized,
			Body:   errorEnvelope(message),
		}, nil
	}

	return &loginOutput{
		Body: envelope{Message: "success", LoginResult: result},
	}, nil
}
