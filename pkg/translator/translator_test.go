package translator_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/glossa/pkg/llm"
	"github.com/papercomputeco/glossa/pkg/platform"
	"github.com/papercomputeco/glossa/pkg/translator"
)

// upstream is a fake OpenAI-compatible chat completions server.
type upstream struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []map[string]any
	headers  []http.Header
	paths    []string

	handler http.HandlerFunc
}

func newUpstream() *upstream {
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		u.mu.Lock()
		u.requests = append(u.requests, body)
		u.headers = append(u.headers, r.Header.Clone())
		u.paths = append(u.paths, r.URL.Path)
		h := u.handler
		u.mu.Unlock()

		h(w, r)
	}))
	return u
}

func (u *upstream) lastRequest() map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests[len(u.requests)-1]
}

func sseHandler(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			_, _ = io.WriteString(w, f)
			w.(http.Flusher).Flush()
		}
	}
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func deltaFrame(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": content}}},
	})
	return "data: " + string(b) + "\n\n"
}

func drain(s *translator.Stream) ([]llm.StreamChunk, error) {
	var chunks []llm.StreamChunk
	for {
		c, err := s.Next()
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, *c)
	}
}

var _ = Describe("Translator", func() {
	var (
		up       *upstream
		settings platform.Settings
		ctx      context.Context
	)

	BeforeEach(func() {
		up = newUpstream()
		settings = platform.Settings{
			Platform: "deepseek",
			APIKey:   "sk-test",
			BaseURL:  up.server.URL + "/v1/",
			Model:    "deepseek-chat",
		}
		ctx = context.Background()
	})

	AfterEach(func() {
		up.server.Close()
	})

	Describe("New", func() {
		It("requires an API key", func() {
			settings.APIKey = ""
			_, err := translator.New(settings)
			Expect(err).To(MatchError(translator.ErrInvalidSettings))
		})

		It("does not require a key for ollama", func() {
			settings.Platform = "ollama"
			settings.APIKey = ""
			_, err := translator.New(settings)
			Expect(err).NotTo(HaveOccurred())
		})

		It("requires a base URL and model", func() {
			s := settings
			s.BaseURL = ""
			_, err := translator.New(s)
			Expect(err).To(MatchError(ContainSubstring("base URL")))

			s = settings
			s.Model = ""
			_, err = translator.New(s)
			Expect(err).To(MatchError(ContainSubstring("model")))
		})

		It("infers the platform from the base URL when unset", func() {
			tr, err := translator.New(platform.Settings{
				APIKey:  "k",
				BaseURL: "https://api.moonshot.cn/v1",
				Model:   "m",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Settings().Platform).To(Equal("moonshot"))
		})

		It("joins the endpoint without a double slash", func() {
			tr, err := translator.New(settings)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Endpoint()).To(Equal(up.server.URL + "/v1/chat/completions"))
		})
	})

	Describe("Messages", func() {
		It("names the source language when given", func() {
			msgs := translator.Messages(translator.Request{Text: "hola", TargetLang: "English", SourceLang: "Spanish"})
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0]).To(Equal(llm.NewSystemMessage(translator.SystemPrompt)))
			Expect(msgs[1].Content).To(Equal("Translate the following text from Spanish to English:\n\nhola"))
		})

		It("omits the source clause when empty", func() {
			msgs := translator.Messages(translator.Request{Text: "hola", TargetLang: "English"})
			Expect(msgs[1].Content).To(Equal("Translate the following text to English:\n\nhola"))
		})
	})

	Describe("Stream", func() {
		It("yields deltas and the sentinel as done", func() {
			up.handler = sseHandler(
				"data: {\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\"}}]}\n\n",
				deltaFrame("Hel"),
				deltaFrame("lo"),
				"data: [DONE]\n\n",
			)
			tr, err := translator.New(settings)
			Expect(err).NotTo(HaveOccurred())

			s, err := tr.Stream(ctx, translator.Request{Text: "Hola", TargetLang: "English"})
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			chunks, err := drain(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(Equal([]llm.StreamChunk{
				{Content: "Hel"},
				{Content: "lo"},
				{Done: true},
			}))
		})

		It("sends the expected payload and headers", func() {
			up.handler = sseHandler("data: [DONE]\n\n")
			tr, err := translator.New(settings)
			Expect(err).NotTo(HaveOccurred())

			s, err := tr.Stream(ctx, translator.Request{Text: "Hola", TargetLang: "English"})
			Expect(err).NotTo(HaveOccurred())
			_, _ = drain(s)
			s.Close()

			body := up.lastRequest()
			Expect(body).To(HaveKeyWithValue("model", "deepseek-chat"))
			Expect(body).To(HaveKeyWithValue("stream", true))
			Expect(body).To(HaveKeyWithValue("temperature", 0.7))
			Expect(body).To(HaveKeyWithValue("max_tokens", float64(4000)))
			Expect(up.paths[0]).To(Equal("/v1/chat/completions"))
			Expect(up.headers[0].Get("Authorization")).To(Equal("Bearer sk-test"))
		})

		It("omits generation parameters for ollama", func() {
			up.handler = sseHandler("data: [DONE]\n\n")
			settings.Platform = "ollama"
			settings.APIKey = ""
			tr, err := translator.New(settings)
			Expect(err).NotTo(HaveOccurred())

			s, err := tr.Stream(ctx, translator.Request{Text: "Hola", TargetLang: "English"})
			Expect(err).NotTo(HaveOccurred())
			s.Close()

			body := up.lastRequest()
			Expect(body).NotTo(HaveKey("temperature"))
			Expect(body).NotTo(HaveKey("max_tokens"))
			Expect(up.headers[0].Get("Authorization")).To(BeEmpty())
		})

		It("accepts bare JSON lines and done:true", func() {
			up.handler = sseHandler(
				"{\"choices\":[{\"index\":0,\"delta\":{\"content\":\"A\"}}]}\n",
				"{\"done\": true}\n",
			)
			tr, _ := translator.New(settings)

			s, err := tr.Stream(ctx, translator.Request{Text: "x", TargetLang: "y"})
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			chunks, err := drain(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(Equal([]llm.StreamChunk{{Content: "A"}, {Done: true}}))
		})

		It("stops after an in-band error", func() {
			up.handler = sseHandler(
				"data: {\"error\":{\"message\":\"quota exceeded\"}}\n\n",
				deltaFrame("never"),
			)
			tr, _ := translator.New(settings)

			s, err := tr.Stream(ctx, translator.Request{Text: "x", TargetLang: "y"})
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			chunks, err := drain(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(Equal([]llm.StreamChunk{{Error: "quota exceeded"}}))
		})

		It("skips undecodable events", func() {
			up.handler = sseHandler("data: {not json\n\n", deltaFrame("X"), "data: [DONE]\n\n")
			tr, _ := translator.New(settings)

			s, err := tr.Stream(ctx, translator.Request{Text: "x", TargetLang: "y"})
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			chunks, err := drain(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(Equal([]llm.StreamChunk{{Content: "X"}, {Done: true}}))
		})

		It("ends with io.EOF when the upstream closes without a sentinel", func() {
			up.handler = sseHandler(deltaFrame("A"))
			tr, _ := translator.New(settings)

			s, err := tr.Stream(ctx, translator.Request{Text: "x", TargetLang: "y"})
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			chunks, err := drain(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(Equal([]llm.StreamChunk{{Content: "A"}}))
		})

		It("tees raw upstream bytes to the capture writer", func() {
			up.handler = sseHandler(deltaFrame("A"), "data: [DONE]\n\n")
			var capture strings.Builder
			tr, _ := translator.New(settings, translator.WithCapture(&capture))

			s, err := tr.Stream(ctx, translator.Request{Text: "x", TargetLang: "y"})
			Expect(err).NotTo(HaveOccurred())
			_, _ = drain(s)
			s.Close()

			Expect(capture.String()).To(ContainSubstring("data: [DONE]"))
		})

		It("rejects empty text before calling upstream", func() {
			tr, _ := translator.New(settings)
			_, err := tr.Stream(ctx, translator.Request{Text: "  ", TargetLang: "English"})
			Expect(err).To(MatchError(translator.ErrEmptyText))
			Expect(up.requests).To(BeEmpty())
		})

		It("rejects an empty target language", func() {
			tr, _ := translator.New(settings)
			_, err := tr.Stream(ctx, translator.Request{Text: "hola"})
			Expect(err).To(MatchError(translator.ErrEmptyTarget))
		})

		DescribeTable("maps upstream HTTP errors",
			func(status int, body, wantMessage, wantDetail string) {
				up.handler = jsonHandler(status, body)
				tr, _ := translator.New(settings)

				_, err := tr.Stream(ctx, translator.Request{Text: "x", TargetLang: "y"})
				var httpErr *translator.HTTPError
				Expect(errors.As(err, &httpErr)).To(BeTrue())
				Expect(httpErr.StatusCode).To(Equal(status))
				Expect(httpErr.Message()).To(ContainSubstring(wantMessage))
				Expect(httpErr.Detail).To(Equal(wantDetail))
			},
			Entry("401", 401, `{"error":{"message":"invalid key"}}`, "Unauthorized", "invalid key"),
			Entry("403", 403, `{"error":"no access"}`, "Forbidden", "no access"),
			Entry("404", 404, `{"detail":"no such model"}`, "Model 'deepseek-chat'", "no such model"),
			Entry("429", 429, `{"errors":{"message":"slow down"}}`, "Rate Limit", "slow down"),
			Entry("500", 502, `bad gateway`, "Server Error", "bad gateway"),
			Entry("other", 418, ``, "unexpected", ""),
		)
	})

	Describe("Translate", func() {
		It("returns the trimmed translation", func() {
			up.handler = jsonHandler(200, `{"choices":[{"index":0,"message":{"role":"assistant","content":"  Hello \n"}}]}`)
			tr, _ := translator.New(settings)

			out, err := tr.Translate(ctx, translator.Request{Text: "Hola", TargetLang: "English"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Hello"))
			Expect(up.lastRequest()).To(HaveKeyWithValue("stream", false))
		})

		It("reports a response without text", func() {
			up.handler = jsonHandler(200, `{"choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`)
			tr, _ := translator.New(settings)

			_, err := tr.Translate(ctx, translator.Request{Text: "Hola", TargetLang: "English"})
			Expect(err).To(MatchError(translator.ErrNoTranslation))
		})

		It("returns an HTTPError for failed requests", func() {
			up.handler = jsonHandler(401, `{"error":{"message":"bad key"}}`)
			tr, _ := translator.New(settings)

			_, err := tr.Translate(ctx, translator.Request{Text: "Hola", TargetLang: "English"})
			Expect(err).To(MatchError(ContainSubstring("API HTTP Error 401")))
		})
	})
})
