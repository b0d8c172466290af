package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hjoncour/gh-to-gl-migrator/giturl"
	"github.com/hjoncour/gh-to-gl-migrator/policy"
)

// maximum payload size accepted by GitHub is 25MB
const maxPayloadSize = 25 << 20

// Submitter schedules mirror of push events
type Submitter interface {
	Submit(event policy.PushEvent) error
}

type GithubWebhookHandler struct {
	dispatcher Submitter
	remote     string // source remote, events of other repositories are ignored
	secret     string
	log        *slog.Logger
}

func (wh *GithubWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		wh.log.Error("cannot read request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !wh.isValidSignature(body, r.Header.Get("X-Hub-Signature-256")) {
		wh.log.Error("invalid signature")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event := r.Header.Get("X-GitHub-Event")

	var payload GitHubEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		wh.log.Error("cannot unmarshal json payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// The ping event is a confirmation from GitHub that
	// the webhook is configured correctly.
	if event == "ping" {
		w.Write([]byte("pong"))
		return
	}

	// only process 'push' event but return ok for all events to mark
	// successful delivery
	if event == "push" {
		wh.processPushEvent(&payload)
	}
}

func (wh *GithubWebhookHandler) isValidSignature(message []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(wh.computeHMAC(message, wh.secret)))
}

func (wh *GithubWebhookHandler) computeHMAC(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))

	if _, err := mac.Write(message); err != nil {
		wh.log.Error("cannot compute hmac for request", "error", err)
		return ""
	}

	// GH adds `sha256=` prefix in header value
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// isSource returns true if payload is for the configured source repository
func (wh *GithubWebhookHandler) isSource(payload *GitHubEvent) bool {
	for _, u := range []string{payload.Repository.CloneURL, payload.Repository.SSHURL, payload.Repository.HtmlURL} {
		if u == "" {
			continue
		}
		if ok, err := giturl.SameRawURL(u, wh.remote); err == nil && ok {
			return true
		}
	}
	return false
}

func (wh *GithubWebhookHandler) processPushEvent(payload *GitHubEvent) {
	log := wh.log.With("repo", payload.Repository.FullName, "ref", payload.Ref)

	if !wh.isSource(payload) {
		log.Debug("ignoring push event of other repository")
		return
	}
	if strings.HasPrefix(payload.Ref, "refs/tags/") {
		log.Debug("ignoring tag push")
		return
	}
	if payload.Deleted {
		log.Debug("ignoring ref deletion")
		return
	}

	if err := wh.dispatcher.Submit(payload.pushEvent(policy.Push)); err != nil {
		log.Error("unable to process push event", "err", err)
	}
}
