package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/glossa/pkg/logger"
	"github.com/papercomputeco/glossa/pkg/platform"
	"github.com/papercomputeco/glossa/pkg/stream"
)

// newTestRelay creates a Relay with temp directories and an empty
// environment.
func newTestRelay(env map[string]string) *Relay {
	dir := GinkgoT().TempDir()
	r, err := New(Config{
		ListenAddr: ":0",
		OutputDir:  filepath.Join(dir, "out"),
		UploadDir:  filepath.Join(dir, "uploads"),
		Env: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
	}, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return r
}

func formRequest(fields map[string]string) *http.Request {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/translate_api", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func multipartRequest(fields map[string]string, fileName string, content []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		Expect(mw.WriteField(k, v)).To(Succeed())
	}
	fw, err := mw.CreateFormFile("file", fileName)
	Expect(err).NotTo(HaveOccurred())
	_, err = fw.Write(content)
	Expect(err).NotTo(HaveOccurred())
	Expect(mw.Close()).To(Succeed())

	req := httptest.NewRequest(http.MethodPost, "/translate_api", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// decodeStream runs a relay response body through the stream decoder.
func decodeStream(body io.Reader) ([]stream.Event, stream.Completion) {
	var events []stream.Event
	c, err := stream.Consume(context.Background(), body, func(ev stream.Event) error {
		events = append(events, ev)
		return nil
	})
	Expect(err).NotTo(HaveOccurred())
	return events, c
}

func sseUpstream(frames ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprint(w, f)
			flusher.Flush()
		}
	}))
}

func openaiDelta(content string) string {
	return fmt.Sprintf("data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", content)
}

var _ = Describe("Relay", func() {
	var (
		r        *Relay
		upstream *httptest.Server
	)

	AfterEach(func() {
		if r != nil {
			r.Close()
		}
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	Describe("POST /translate_api streaming", func() {
		It("normalizes an OpenAI stream into frames the decoder understands", func() {
			upstream = sseUpstream(
				"data: {\"id\":\"chatcmpl-1\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\"}}]}\n\n",
				openaiDelta("Hello"),
				openaiDelta(" world"),
				"data: [DONE]\n\n",
			)
			r = newTestRelay(nil)

			resp, err := r.server.Test(formRequest(map[string]string{
				"api_platform": "custom",
				"api_key":      "k",
				"base_url":     upstream.URL + "/v1",
				"model":        "m",
				"target_lang":  "French",
				"text_input":   "Bonjour",
			}), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			events, c := decodeStream(resp.Body)
			Expect(events).To(Equal([]stream.Event{
				stream.TextChunk{Text: "Hello"},
				stream.TextChunk{Text: " world"},
				stream.Done{},
			}))
			Expect(c.Termination).To(Equal(stream.TerminationDoneField))
			Expect(c.Chunks).To(Equal(2))
		})

		It("writes single-line JSON frames", func() {
			upstream = sseUpstream(openaiDelta("line one\nline two"), "data: [DONE]\n\n")
			r = newTestRelay(nil)

			resp, err := r.server.Test(formRequest(map[string]string{
				"api_key": "k", "base_url": upstream.URL, "model": "m",
				"target_lang": "English", "text_input": "x",
			}), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(
				": stream open\n\ndata: {\"text_chunk\":\"line one\\nline two\"}\n\ndata: {\"done\":true}\n\n",
			))
		})

		It("turns an upstream 401 into exactly one error frame", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
			}))
			r = newTestRelay(nil)

			resp, err := r.server.Test(formRequest(map[string]string{
				"api_key": "bad", "base_url": upstream.URL, "model": "m",
				"target_lang": "English", "text_input": "x",
			}), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			events, c := decodeStream(resp.Body)
			Expect(events).To(HaveLen(1))
			errEv, ok := events[0].(stream.ErrorEvent)
			Expect(ok).To(BeTrue())
			Expect(errEv.Message).To(ContainSubstring("401"))
			Expect(errEv.Message).To(ContainSubstring("invalid api key"))
			Expect(c.Failed()).To(BeTrue())
		})

		It("forwards an in-band upstream error and stops", func() {
			upstream = sseUpstream(
				openaiDelta("partial"),
				"data: {\"error\":{\"message\":\"context length exceeded\"}}\n\n",
				openaiDelta("never"),
			)
			r = newTestRelay(nil)

			resp, err := r.server.Test(formRequest(map[string]string{
				"api_key": "k", "base_url": upstream.URL, "model": "m",
				"target_lang": "English", "text_input": "x",
			}), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			events, _ := decodeStream(resp.Body)
			Expect(events).To(Equal([]stream.Event{
				stream.TextChunk{Text: "partial"},
				stream.ErrorEvent{Message: "context length exceeded"},
			}))
		})

		It("ends with a done frame when the upstream closes without a marker", func() {
			upstream = sseUpstream(openaiDelta("A"))
			r = newTestRelay(nil)

			resp, err := r.server.Test(formRequest(map[string]string{
				"api_key": "k", "base_url": upstream.URL, "model": "m",
				"target_lang": "English", "text_input": "x",
			}), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			events, _ := decodeStream(resp.Body)
			Expect(events).To(Equal([]stream.Event{stream.TextChunk{Text: "A"}, stream.Done{}}))
		})

		It("resolves the upstream from platform environment variables", func() {
			var gotAuth string
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				gotAuth = req.Header.Get("Authorization")
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: [DONE]\n\n")
			}))
			r = newTestRelay(map[string]string{
				"DEEPSEEK_API_KEY":  "env-key",
				"DEEPSEEK_BASE_URL": upstream.URL,
			})

			resp, err := r.server.Test(formRequest(map[string]string{
				"api_platform": "deepseek", "target_lang": "English", "text_input": "x",
			}), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			_, c := decodeStream(resp.Body)
			Expect(c.Termination).To(Equal(stream.TerminationDoneField))
			Expect(gotAuth).To(Equal("Bearer env-key"))
		})

		It("counts streams in expvar", func() {
			upstream = sseUpstream("data: [DONE]\n\n")
			r = newTestRelay(nil)
			before := streamsCompleted.Value()

			resp, err := r.server.Test(formRequest(map[string]string{
				"api_key": "k", "base_url": upstream.URL, "model": "m",
				"target_lang": "English", "text_input": "x",
			}), -1)
			Expect(err).NotTo(HaveOccurred())
			_, _ = io.ReadAll(resp.Body)
			resp.Body.Close()

			Eventually(streamsCompleted.Value).Should(Equal(before + 1))

			resp, err = r.server.Test(httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var vars map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&vars)).To(Succeed())
			Expect(vars).To(HaveKey("streams_started"))
			Expect(vars).To(HaveKey("streams_completed"))
			Expect(vars).To(HaveKey("streams_failed"))
		})
	})

	Describe("POST /translate_api validation", func() {
		BeforeEach(func() {
			r = newTestRelay(nil)
		})

		DescribeTable("rejects bad requests with 400",
			func(fields map[string]string, wantError string) {
				resp, err := r.server.Test(formRequest(fields))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				var body map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body["error"]).To(ContainSubstring(wantError))
			},
			Entry("missing target", map[string]string{"text_input": "x"}, "Target language is required"),
			Entry("missing key", map[string]string{"api_platform": "openai", "target_lang": "en", "text_input": "x"}, "API key"),
			Entry("unknown platform", map[string]string{"api_platform": "nope", "target_lang": "en", "text_input": "x"}, "unknown platform"),
			Entry("blank text", map[string]string{"api_platform": "ollama", "target_lang": "en", "text_input": "   "}, "cannot be empty"),
			Entry("no input", map[string]string{"api_platform": "ollama", "target_lang": "en"}, "No text or file"),
		)
	})

	Describe("POST /translate_api non-streaming", func() {
		It("returns the translated text", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":" Hello "}}]}`)
			}))
			r = newTestRelay(nil)

			resp, err := r.server.Test(formRequest(map[string]string{
				"api_key": "k", "base_url": upstream.URL, "model": "m",
				"target_lang": "English", "text_input": "Hola", "stream": "false",
			}))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("translated_text", "Hello"))
		})

		It("maps upstream failures to 502", func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			}))
			r = newTestRelay(nil)

			resp, err := r.server.Test(formRequest(map[string]string{
				"api_key": "k", "base_url": upstream.URL, "model": "m",
				"target_lang": "English", "text_input": "Hola", "stream": "no",
			}))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("file translation and download", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"translated"}}]}`)
			}))
			r = newTestRelay(nil)
		})

		fields := func() map[string]string {
			return map[string]string{
				"api_key": "k", "base_url": upstream.URL, "model": "m",
				"target_lang": "Simplified Chinese", "encoding": "utf-8",
			}
		}

		It("translates a .txt upload and serves the result", func() {
			resp, err := r.server.Test(multipartRequest(fields(), "notes.txt", []byte("hello\n\nworld")))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			fileURL := body["translated_file_url"]
			Expect(fileURL).To(MatchRegexp(`^/download/[0-9a-f-]{36}_translated_Simplified_Chinese\.txt$`))

			dl, err := r.server.Test(httptest.NewRequest(http.MethodGet, fileURL, nil))
			Expect(err).NotTo(HaveOccurred())
			defer dl.Body.Close()
			Expect(dl.StatusCode).To(Equal(http.StatusOK))
			Expect(dl.Header.Get("Content-Disposition")).To(ContainSubstring("attachment"))

			content, err := io.ReadAll(dl.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("translated"))

			uploads, err := os.ReadDir(r.config.UploadDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(uploads).To(BeEmpty())
		})

		It("rejects other file types", func() {
			resp, err := r.server.Test(multipartRequest(fields(), "report.docx", []byte("PK")))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects unknown encodings", func() {
			f := fields()
			f["encoding"] = "klingon-8"
			resp, err := r.server.Test(multipartRequest(f, "notes.txt", []byte("hello")))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for missing downloads", func() {
			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/download/nope.txt", nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("rejects path traversal", func() {
			Expect(os.WriteFile(filepath.Join(filepath.Dir(r.config.OutputDir), "secret.txt"), []byte("s"), 0o600)).To(Succeed())

			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/download/..%2Fsecret.txt", nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			// Depending on path normalization the router either rejects the
			// name or never matches the route; the file is never served.
			Expect(resp.StatusCode).To(BeElementOf(http.StatusBadRequest, http.StatusNotFound))
		})
	})

	Describe("informational routes", func() {
		BeforeEach(func() {
			r = newTestRelay(nil)
		})

		It("answers ping", func() {
			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(MatchJSON(`{"status":"ok"}`))
		})

		It("lists platforms", func() {
			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/platforms", nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var presets []platform.Preset
			Expect(json.NewDecoder(resp.Body).Decode(&presets)).To(Succeed())
			Expect(presets).To(HaveLen(len(platform.Names())))
			Expect(presets[1].Name).To(Equal("deepseek"))
			Expect(presets[1].DefaultModel).To(Equal("deepseek-chat"))
		})
	})

	Describe("SetFallback", func() {
		It("is used when nothing else resolves", func() {
			var gotModel string
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				var body struct {
					Model string `json:"model"`
				}
				_ = json.NewDecoder(req.Body).Decode(&body)
				gotModel = body.Model
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
			}))
			r = newTestRelay(nil)
			r.SetFallback(platform.Fallback{APIKey: "fb", BaseURL: upstream.URL, Model: "fallback-model"})
			Expect(r.Fallback().Model).To(Equal("fallback-model"))

			resp, err := r.server.Test(formRequest(map[string]string{
				"target_lang": "English", "text_input": "x", "stream": "0",
			}))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(gotModel).To(Equal("fallback-model"))
		})
	})
})

var _ = Describe("helpers", func() {
	DescribeTable("streamRequested",
		func(v string, want bool) {
			Expect(streamRequested(v)).To(Equal(want))
		},
		Entry("default", "", true),
		Entry("true", "true", true),
		Entry("false", "false", false),
		Entry("zero", "0", false),
		Entry("no", "No", false),
		Entry("garbage", "maybe", true),
	)

	DescribeTable("validDownloadName",
		func(name string, want bool) {
			Expect(validDownloadName(name)).To(Equal(want))
		},
		Entry("plain", "abc_translated_en.txt", true),
		Entry("empty", "", false),
		Entry("parent", "../x.txt", false),
		Entry("absolute", "/etc/passwd", false),
		Entry("backslash", `a\b.txt`, false),
	)

	It("sanitizes language names", func() {
		Expect(safeName("Simplified Chinese")).To(Equal("Simplified_Chinese"))
		Expect(safeName("日本語")).To(Equal("日本語"))
		Expect(safeName("../")).To(Equal("_"))
		Expect(safeName("  ")).To(Equal("text"))
	})
})
