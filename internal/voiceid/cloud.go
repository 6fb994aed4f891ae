package voiceid

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

	"github.com/hearthside/hearth/internal/audio"
)

// Cloud enrollment/identification via the Azure Speaker Recognition REST
// API (text-independent identification, api-version 2021-09-05). The
// profile artifact is the remote profile id; enrollment audio accumulates
// service-side, so PendingPCM is never populated on this path.

const (
	cloudAPIVersion = "2021-09-05"
	cloudBasePath   = "speaker-recognition/identification/text-independent"
	// The service calibrates identification scores differently from the
	// on-device engine.
	cloudIdentifyThreshold = 0.45
)

type CloudConfig struct {
	// Endpoint takes precedence; otherwise Region builds the default
	// cognitive-services host.
	Endpoint string
	Region   string
	Key      string
}

type CloudProvider struct {
	baseURL string
	key     string
	client  *http.Client
}

func NewCloudProvider(cfg CloudConfig) (*CloudProvider, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if base == "" {
		region := strings.TrimSpace(cfg.Region)
		if region == "" {
			return nil, ErrNotConfigured
		}
		base = fmt.Sprintf("https://%s.api.cognitive.microsoft.com", region)
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		return nil, ErrNotConfigured
	}
	return &CloudProvider{
		baseURL: base,
		key:     key,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (p *CloudProvider) Name() string { return "cloud" }

func (p *CloudProvider) EnrollStep(ctx context.Context, prior Enrollment, pcm []int16) (Enrollment, error) {
	if len(pcm) == 0 {
		return prior, ErrSampleTooShort
	}

	profileID := strings.TrimSpace(string(prior.Artifact))
	if profileID == "" {
		created, err := p.createProfile(ctx)
		if err != nil {
			return prior, err
		}
		profileID = created
	}

	status, remaining, err := p.createEnrollment(ctx, profileID, pcm)
	if err != nil {
		return prior, err
	}

	next := Enrollment{
		Artifact:         []byte(profileID),
		Percent:          prior.Percent,
		RemainingSeconds: remaining,
	}
	if strings.EqualFold(status, "Enrolled") {
		next.Percent = 100
		next.RemainingSeconds = 0
		next.Complete = true
		return next, nil
	}
	pct := 100 * (1 - remaining/enrollTargetSeconds)
	if pct > next.Percent {
		next.Percent = pct
	}
	if next.Percent < 0 {
		next.Percent = 0
	} else if next.Percent > 99 {
		next.Percent = 99
	}
	return next, nil
}

func (p *CloudProvider) Identify(ctx context.Context, candidates []Candidate, pcm []int16) (Match, error) {
	if len(candidates) == 0 {
		return Match{}, nil
	}
	if len(pcm) < MinIdentifySamples {
		return Match{}, ErrSampleTooShort
	}

	ids := make([]string, 0, len(candidates))
	byProfile := make(map[string]string, len(candidates))
	for _, c := range candidates {
		pid := strings.TrimSpace(string(c.Profile))
		if pid == "" {
			continue
		}
		ids = append(ids, pid)
		byProfile[strings.ToLower(pid)] = c.ID
	}
	if len(ids) == 0 {
		return Match{}, nil
	}

	endpoint := fmt.Sprintf(
		"%s/%s/profiles:identifySingleSpeaker?api-version=%s&profileIds=%s&ignoreMinLength=true",
		p.baseURL, cloudBasePath, cloudAPIVersion, url.QueryEscape(strings.Join(ids, ",")),
	)
	body, status, err := p.post(ctx, endpoint, "audio/wav; codecs=audio/pcm", audio.EncodeWAV(pcm, audio.SampleRate))
	if err != nil {
		return Match{}, err
	}
	if status != http.StatusOK {
		return Match{}, fmt.Errorf("identify: http %d: %s", status, truncate(body, 200))
	}

	var parsed struct {
		IdentifiedProfile struct {
			ProfileID string  `json:"profileId"`
			Score     float64 `json:"score"`
		} `json:"identifiedProfile"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Match{}, fmt.Errorf("identify: decode response: %w", err)
	}
	pid := strings.TrimSpace(parsed.IdentifiedProfile.ProfileID)
	score := parsed.IdentifiedProfile.Score
	if pid == "" || score < cloudIdentifyThreshold {
		return Match{Confidence: score}, nil
	}
	candidateID, ok := byProfile[strings.ToLower(pid)]
	if !ok {
		return Match{Confidence: score}, nil
	}
	return Match{Recognized: true, CandidateID: candidateID, Confidence: score}, nil
}

func (p *CloudProvider) createProfile(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/profiles?api-version=%s", p.baseURL, cloudBasePath, cloudAPIVersion)
	payload, _ := json.Marshal(map[string]string{"locale": "en-us"})
	body, status, err := p.post(ctx, endpoint, "application/json", payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("create profile: http %d: %s", status, truncate(body, 200))
	}
	var parsed struct {
		ProfileID string `json:"profileId"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("create profile: decode response: %w", err)
	}
	if strings.TrimSpace(parsed.ProfileID) == "" {
		return "", fmt.Errorf("create profile: empty profile id")
	}
	return parsed.ProfileID, nil
}

func (p *CloudProvider) createEnrollment(ctx context.Context, profileID string, pcm []int16) (string, float64, error) {
	endpoint := fmt.Sprintf(
		"%s/%s/profiles/%s/enrollments?api-version=%s",
		p.baseURL, cloudBasePath, url.PathEscape(profileID), cloudAPIVersion,
	)
	body, status, err := p.post(ctx, endpoint, "audio/wav; codecs=audio/pcm", audio.EncodeWAV(pcm, audio.SampleRate))
	if err != nil {
		return "", 0, err
	}
	if status != http.StatusCreated {
		return "", 0, fmt.Errorf("create enrollment: http %d: %s", status, truncate(body, 200))
	}
	var parsed struct {
		EnrollmentStatus                      string  `json:"enrollmentStatus"`
		RemainingEnrollmentsSpeechLengthInSec float64 `json:"remainingEnrollmentsSpeechLengthInSec"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("create enrollment: decode response: %w", err)
	}
	return parsed.EnrollmentStatus, parsed.RemainingEnrollmentsSpeechLengthInSec, nil
}

func (p *CloudProvider) post(ctx context.Context, endpoint, contentType string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("speaker recognition request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}
