package devserver

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"storykeeper/internal/app/client/api"
)

type StoryHandler struct {
	store      *Store
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewStoryHandler(store *Store, log *slog.Logger, middleware huma.Middlewares) *StoryHandler {
	return &StoryHandler{
		store:      store,
		log:        log,
		middleware: middleware,
	}
}

func (h *StoryHandler) SetupRoutes(humaAPI huma.API) {
	huma.Register(humaAPI, h.listOp(), h.list)
	huma.Register(humaAPI, h.getOp(), h.get)
	huma.Register(humaAPI, h.createOp(), h.create)
	huma.Register(humaAPI, h.subscribeOp(), h.subscribe)
}

func (h *StoryHandler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "story-list",
		Method:      http.MethodGet,
		Path:        "/v1/stories",
		Summary:     "List stories, newest first",
		Tags:        []string{"stories"},
		Middlewares: h.middleware,
	}
}

func (h *StoryHandler) getOp() huma.Operation {
	return huma.Operation{
		OperationID: "story-get",
		Method:      http.MethodGet,
		Path:        "/v1/stories/{id}",
		Summary:     "Fetch one story",
		Tags:        []string{"stories"},
		Middlewares: h.middleware,
	}
}

func (h *StoryHandler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "story-create",
		Method:        http.MethodPost,
		Path:          "/v1/stories",
		Summary:       "Upload a new story",
		Tags:          []string{"stories"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}

func (h *StoryHandler) subscribeOp() huma.Operation {
	return huma.Operation{
		OperationID: "push-subscribe",
		Method:      http.MethodPost,
		Path:        "/v1/notifications/subscribe",
		Summary:     "Register a web-push subscription",
		Tags:        []string{"notifications"},
		Middlewares: h.middleware,
	}
}

type listInput struct {
	Location int `query:"location"`
	Page     int `query:"page"`
	Size     int `query:"size"`
}

type listOutput struct {
	Body envelope
}

func (h *StoryHandler) list(_ context.Context, input *listInput) (*listOutput, error) {
	stories := h.store.ListStories()

	// The location flag strips coordinates when unset, like upstream.
	if input.Location != 1 {
		for _, st := range stories {
			st.Lat = nil
			st.Lon = nil
		}
	}

	if input.Size > 0 {
		page := input.Page
		if page < 1 {
			page = 1
		}
		from := (page - 1) * input.Size
		if from > len(stories) {
			from = len(stories)
		}
		to := from + input.Size
		if to > len(stories) {
			to = len(stories)
		}
		stories = stories[from:to]
	}

	return &listOutput{
		Body: envelope{Message: "Stories fetched successfully", ListStory: stories},
	}, nil
}

type getInput struct {
	ID string `path:"id"`
}

type getOutput struct {
	Status int
	Body   envelope
}

func (h *StoryHandler) get(_ context.Context, input *getInput) (*getOutput, error) {
	st, err := h.store.GetStory(input.ID)
	if err != nil {
		return &getOutput{
			Status: http.StatusNotFound,
			Body:   errorEnvelope("Story not found"),
		}, nil
	}

	return &getOutput{
		Body: envelope{Message: "Story fetched successfully", Story: st},
	}, nil
}

type createInput struct {
	RawBody multipart.Form
}

type createOutput struct {
	Status int
	Body   envelope
}

func (h *StoryHandler) create(ctx context.Context, input *createInput) (*createOutput, error) {
	authorID, ok := userIDFrom(ctx)
	if !ok {
		return &createOutput{
			Status: http.StatusUnauthorized,
			Body:   errorEnvelope("Missing authentication"),
		}, nil
	}

	description := formValue(&input.RawBody, "description")
	if description == "" {
		return &createOutput{
			Status: http.StatusBadRequest,
			Body:   errorEnvelope(`"description" is required`),
		}, nil
	}

	photo, err := formFile(&input.RawBody, "photo")
	if err != nil {
		return &createOutput{
			Status: http.StatusBadRequest,
			Body:   errorEnvelope(`"photo" is required`),
		}, nil
	}

	lat, err := formFloat(&input.RawBody, "lat")
	if err != nil {
		return &createOutput{
			Status: http.StatusBadRequest,
			Body:   errorEnvelope(`"lat" must be a number`),
		}, nil
	}
	lon, err := formFloat(&input.RawBody, "lon")
	if err != nil {
		return &createOutput{
			Status: http.StatusBadRequest,
			Body:   errorEnvelope(`"lon" must be a number`),
		}, nil
	}

	id, err := h.store.AddStory(authorID, description, photo, lat, lon)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			return &createOutput{
				Status: http.StatusUnauthorized,
				Body:   errorEnvelope("Invalid token"),
			}, nil
		}
		h.log.Error("create story failed", "error", err)
		return &createOutput{
			Status: http.StatusInternalServerError,
			Body:   errorEnvelope("Internal server error"),
		}, nil
	}

	return &createOutput{
		Body: envelope{Message: "Story created successfully", ID: id},
	}, nil
}

type subscribeInput struct {
	Body api.Subscription
}

type subscribeOutput struct {
	Status int
	Body   envelope
}

func (h *StoryHandler) subscribe(_ context.Context, input *subscribeInput) (*subscribeOutput, error) {
	if input.Body.Endpoint == "" {
		return &subscribeOutput{
			Status: http.StatusBadRequest,
			Body:   errorEnvelope(`"endpoint" is required`),
		}, nil
	}

	h.store.Subscribe(input.Body)
	return &subscribeOutput{
		Body: envelope{Message: "Success to subscribe web push notification"},
	}, nil
}

func formValue(form *multipart.Form, key string) string {
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func formFloat(form *multipart.Form, key string) (*float64, error) {
	raw := formValue(form, key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formFile(form *multipart.Form, key string) ([]byte, error) {
	headers := form.File[key]
	if len(headers) == 0 {
		return nil, errors.New("missing file: " + key)
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
