package voiceid

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// pcmFromWAVBody reads samples back out of the canonical WAV the provider
// uploads: 44-byte header followed by 16-bit LE data.
func pcmFromWAVBody(data []byte) []int16 {
	const headerLen = 44
	if len(data) < headerLen+2 {
		return nil
	}
	body := data[headerLen:]
	out := make([]int16, len(body)/2)
	for i := range out {
		out[i] = int16(uint16(body[2*i]) | uint16(body[2*i+1])<<8)
	}
	return out
}

func newCloudTestProvider(t *testing.T, handler http.Handler) *CloudProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := NewCloudProvider(CloudConfig{Endpoint: srv.URL, Key: "test-key"})
	if err != nil {
		t.Fatalf("NewCloudProvider: %v", err)
	}
	return p
}

func TestCloudProviderRequiresCredentials(t *testing.T) {
	if _, err := NewCloudProvider(CloudConfig{Region: "eastus"}); err != ErrNotConfigured {
		t.Fatalf("missing key: err = %v", err)
	}
	if _, err := NewCloudProvider(CloudConfig{Key: "k"}); err != ErrNotConfigured {
		t.Fatalf("missing endpoint and region: err = %v", err)
	}
}

func TestCloudEnrollStepCreatesProfileThenEnrolls(t *testing.T) {
	var gotKey string
	var enrollContentType string
	var uploaded []int16
	p := newCloudTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		switch {
		case strings.HasSuffix(r.URL.Path, "/profiles"):
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"profileId":"prof-123"}`))
		case strings.HasSuffix(r.URL.Path, "/enrollments"):
			enrollContentType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			uploaded = pcmFromWAVBody(body)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"enrollmentStatus":"Enrolling","remainingEnrollmentsSpeechLengthInSec":7.5}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	pcm := tonePCM(440, 2, 9000)
	enr, err := p.EnrollStep(context.Background(), Enrollment{}, pcm)
	if err != nil {
		t.Fatalf("EnrollStep: %v", err)
	}
	if gotKey != "test-key" {
		t.Fatalf("subscription key = %q", gotKey)
	}
	if !strings.HasPrefix(enrollContentType, "audio/wav") {
		t.Fatalf("enrollment content type = %q", enrollContentType)
	}
	if len(uploaded) != len(pcm) || uploaded[100] != pcm[100] {
		t.Fatalf("uploaded %d samples, want %d intact", len(uploaded), len(pcm))
	}
	if string(enr.Artifact) != "prof-123" {
		t.Fatalf("artifact = %q", enr.Artifact)
	}
	if enr.Complete {
		t.Fatal("complete while service still enrolling")
	}
	if enr.Percent != 50 {
		t.Fatalf("percent = %f, want 50", enr.Percent)
	}
	if enr.RemainingSeconds != 7.5 {
		t.Fatalf("remaining = %f, want 7.5", enr.RemainingSeconds)
	}
	if len(enr.PendingPCM) != 0 {
		t.Fatal("cloud path must not buffer audio locally")
	}
}

func TestCloudEnrollStepReusesExistingProfile(t *testing.T) {
	p := newCloudTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/profiles") {
			t.Error("created a second profile")
		}
		if !strings.Contains(r.URL.Path, "/profiles/prof-123/enrollments") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"enrollmentStatus":"Enrolled","remainingEnrollmentsSpeechLengthInSec":0}`))
	}))

	prior := Enrollment{Artifact: []byte("prof-123"), Percent: 50}
	enr, err := p.EnrollStep(context.Background(), prior, tonePCM(440, 2, 9000))
	if err != nil {
		t.Fatalf("EnrollStep: %v", err)
	}
	if !enr.Complete || enr.Percent != 100 {
		t.Fatalf("enrollment = %+v, want complete", enr)
	}
	if string(enr.Artifact) != "prof-123" {
		t.Fatalf("artifact = %q", enr.Artifact)
	}
}

func TestCloudIdentifyMapsProfileToCandidate(t *testing.T) {
	p := newCloudTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "identifySingleSpeaker") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !strings.Contains(r.URL.RawQuery, "ignoreMinLength=true") {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"identifiedProfile":{"profileId":"prof-b","score":0.82}}`))
	}))

	candidates := []Candidate{
		{ID: "ada", Profile: []byte("prof-a")},
		{ID: "ben", Profile: []byte("prof-b")},
	}
	match, err := p.Identify(context.Background(), candidates, tonePCM(440, 2, 9000))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if !match.Recognized || match.CandidateID != "ben" {
		t.Fatalf("match = %+v, want ben", match)
	}
	if match.Confidence != 0.82 {
		t.Fatalf("confidence = %f", match.Confidence)
	}
}

func TestCloudIdentifyLowScoreNotRecognized(t *testing.T) {
	p := newCloudTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"identifiedProfile":{"profileId":"prof-a","score":0.2}}`))
	}))

	candidates := []Candidate{{ID: "ada", Profile: []byte("prof-a")}}
	match, err := p.Identify(context.Background(), candidates, tonePCM(440, 2, 9000))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if match.Recognized {
		t.Fatalf("match = %+v, want no recognition", match)
	}
	if match.Confidence != 0.2 {
		t.Fatalf("confidence = %f", match.Confidence)
	}
}
