package musicgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.sunoapi.org"

	submitPath = "/api/v1/generate"
	statusPath = "/api/v1/generate/record-info"

	submitTimeout = 30 * time.Second
	statusTimeout = 20 * time.Second

	maxBodyBytes = 1 << 20
	maxRawBytes  = 2048
)

// SunoAPI speaks the Suno-compatible generate and record-info endpoints.
type SunoAPI struct {
	baseURL string
	http    *http.Client
}

// NewSunoAPI returns an adapter for baseURL. A nil httpClient uses
// http.DefaultClient; per-call deadlines are set from the request context.
func NewSunoAPI(baseURL string, httpClient *http.Client) *SunoAPI {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SunoAPI{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type submitBody struct {
	Model        string `json:"model,omitempty"`
	Prompt       string `json:"prompt"`
	Title        string `json:"title"`
	Tags         string `json:"tags"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	CallBackURL  string `json:"callBackUrl"`
}

type submitEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

type statusEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		TaskID       string  `json:"taskId"`
		Status       string  `json:"status"`
		ErrorMessage *string `json:"errorMessage"`
		Response     *struct {
			SunoData []sunoItem `json:"sunoData"`
		} `json:"response"`
	} `json:"data"`
}

type sunoItem struct {
	ID             string `json:"id"`
	StreamAudioURL string `json:"streamAudioUrl"`
	AudioURL       string `json:"audioUrl"`
	ImageURL       string `json:"imageUrl"`
	Title          string `json:"title"`
}

// Submit posts req once. Non-200 answers are returned with a nil error so
// the caller can inspect HTTPStatus and Raw.
func (a *SunoAPI) Submit(ctx context.Context, token string, req GenerationRequest) (SubmitResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	payload, err := json.Marshal(submitBody{
		Model:        req.Model,
		Prompt:       req.Prompt,
		Title:        req.Title,
		Tags:         req.Tags,
		CustomMode:   req.CustomMode,
		Instrumental: req.Instrumental,
		CallBackURL:  req.CallbackURL,
	})
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+submitPath, bytes.NewReader(payload))
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	code, body, err := a.do(httpReq)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("submit task: %w", err)
	}
	out := SubmitResponse{HTTPStatus: code, Raw: truncate(body)}
	if code != http.StatusOK {
		return out, nil
	}
	var env submitEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return out, fmt.Errorf("decode submit response: %w", err)
	}
	out.Code = env.Code
	out.Message = env.Msg
	if env.Data != nil {
		out.TaskID = env.Data.TaskID
	}
	return out, nil
}

// Status queries the task once.
func (a *SunoAPI) Status(ctx context.Context, token string, h JobHandle) (StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	u := a.baseURL + statusPath + "?" + url.Values{"taskId": {h.ID}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("create poll request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	code, body, err := a.do(httpReq)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("poll task: %w", err)
	}
	out := StatusResponse{HTTPStatus: code, Raw: truncate(body)}
	if code != http.StatusOK {
		return out, nil
	}
	var env statusEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return out, fmt.Errorf("decode status response: %w", err)
	}
	if env.Data == nil {
		return out, nil
	}
	out.Status = env.Data.Status
	if env.Data.ErrorMessage != nil {
		out.ErrorMessage = *env.Data.ErrorMessage
	}
	if env.Data.Response != nil {
		for _, it := range env.Data.Response.SunoData {
			out.Items = append(out.Items, Item{
				StreamURL:   it.StreamAudioURL,
				DownloadURL: it.AudioURL,
				CoverURL:    it.ImageURL,
			})
		}
	}
	return out, nil
}

func (a *SunoAPI) do(req *http.Request) (int, []byte, error) {
	resp, err := a.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func truncate(b []byte) string {
	if len(b) > maxRawBytes {
		return string(b[:maxRawBytes])
	}
	return string(b)
}
