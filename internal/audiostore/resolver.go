// Package audiostore resolves a result's audio reference to something a
// player can load. Provider platforms (retell, vapi) host recordings at a
// URL that passes straight through; platform-recorded audio lives in object
// storage and resolves to a time-limited presigned URL.
package audiostore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/voxproof/eval-console/internal/observability"
	"github.com/voxproof/eval-console/internal/resilience"
	"github.com/voxproof/eval-console/internal/result"
)

// ErrNoAudio means the result carries no audio reference at all. Callers
// render "audio not available" rather than treating this as a failure.
var ErrNoAudio = errors.New("audiostore: audio not available")

// Options configures the object storage backing platform recordings.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// URLExpiry bounds how long a signed playback URL stays valid.
	URLExpiry time.Duration
}

// Resolver turns audio references into playable URLs.
type Resolver struct {
	client  *minio.Client
	bucket  string
	expiry  time.Duration
	breaker *resilience.CircuitBreaker
	log     zerolog.Logger
}

// New creates a resolver. Object storage is optional: with an empty
// endpoint, provider-hosted URLs still resolve and storage keys report
// ErrNoAudio.
func New(opts Options) (*Resolver, error) {
	r := &Resolver{
		bucket:  opts.Bucket,
		expiry:  opts.URLExpiry,
		breaker: resilience.NewCircuitBreaker("audiostore", 5, 30*time.Second),
		log:     observability.GetLogger().With().Str("component", "audiostore").Logger(),
	}
	if r.expiry <= 0 {
		r.expiry = 15 * time.Minute
	}

	if opts.Endpoint != "" {
		client, err := minio.New(opts.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
			Secure: opts.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init object storage client: %w", err)
		}
		r.client = client
	}
	return r, nil
}

// PlaybackURL resolves the playable URL for a result's recording.
// Resolution order: a provider-hosted recording URL from the call payload,
// then the audio_ref field (URL passthrough or storage key).
func (r *Resolver) PlaybackURL(ctx context.Context, res *result.EvaluationResult) (string, error) {
	if res == nil {
		observability.RecordAudioResolution("missing")
		return "", ErrNoAudio
	}

	if payload, err := res.Payload(); err == nil && payload != nil {
		if u := payload.RecordingURL(); u != "" {
			observability.RecordAudioResolution("provider")
			return u, nil
		}
	}

	ref := strings.TrimSpace(res.AudioRef)
	if ref == "" {
		observability.RecordAudioResolution("missing")
		return "", ErrNoAudio
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		observability.RecordAudioResolution("provider")
		return ref, nil
	}

	u, err := r.signedURL(ctx, ref)
	if err != nil {
		observability.RecordAudioResolution("error")
		return "", err
	}
	observability.RecordAudioResolution("signed")
	return u, nil
}

// signedURL generates a presigned GET URL for a stored object, behind the
// circuit breaker so a misbehaving storage backend fails fast.
func (r *Resolver) signedURL(ctx context.Context, objectKey string) (string, error) {
	if r.client == nil {
		return "", ErrNoAudio
	}

	var signed string
	err := r.breaker.Call(func() error {
		presigned, err := r.client.PresignedGetObject(ctx, r.bucket, objectKey, r.expiry, url.Values{})
		if err != nil {
			return err
		}
		signed = presigned.String()
		return nil
	})
	if err != nil {
		r.log.Error().Err(err).Str("object_key", objectKey).Msg("presign failed")
		return "", fmt.Errorf("presign recording %q: %w", objectKey, err)
	}
	return signed, nil
}

// HealthCheck probes the storage bucket for readiness reporting. A resolver
// without storage configured is trivially healthy.
func (r *Resolver) HealthCheck(ctx context.Context) (bool, error) {
	if r.client == nil {
		return true, nil
	}
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("bucket %q does not exist", r.bucket)
	}
	return true, nil
}
