package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/metrics"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/repository"
)

const (
	DefaultImageTimeout  = 10 * time.Second
	DefaultImageMaxBytes = 5 << 20
)

// errBlockedAddress is returned by the dialer for hosts that resolve to
// loopback, private or otherwise internal addresses.
var errBlockedAddress = errors.New("image host resolves to a non-public address")

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598), which
// netip does not count as private.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// ImageOptions configures NewImageService. AllowPrivate lets the proxy
// reach loopback and private addresses, which only tests and local setups
// should need.
type ImageOptions struct {
	Timeout      time.Duration
	MaxBytes     int64
	AllowPrivate bool
}

// ImageService proxies product images through a local cache so thumbnails
// keep loading when the upstream is slow or offline.
type ImageService struct {
	cache    repository.ImageCache
	client   *http.Client
	maxBytes int64
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewImageService(cache repository.ImageCache, opts ImageOptions, m *metrics.Metrics, logger *slog.Logger) *ImageService {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultImageTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultImageMaxBytes
	}
	return &ImageService{
		cache:    cache,
		client:   newImageClient(opts),
		maxBytes: opts.MaxBytes,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// newImageClient checks addresses in the dialer, after DNS resolution, so
// redirects and rebinding hostnames are covered as well as literal IPs.
func newImageClient(opts ImageOptions) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.AllowPrivate {
		// An outbound proxy would be the only address the dialer sees.
		transport.Proxy = nil
		dialer := &net.Dialer{Timeout: opts.Timeout, Control: publicAddressOnly}
		transport.DialContext = dialer.DialContext
	}
	return &http.Client{Timeout: opts.Timeout, Transport: transport}
}

func publicAddressOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublicAddr(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, ip)
	}
	return nil
}

func isPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	case sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

// Get serves rawURL from the cache, fetching and storing it on a miss.
func (s *ImageService) Get(ctx context.Context, rawURL string) (*model.CachedImage, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperror.ValidationFailed("url", "An absolute http or https image URL is required")
	}
	key := u.String()

	img, err := s.cache.GetImage(ctx, key)
	if err == nil {
		s.metrics.ImageLookup("hit")
		return img, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		s.logger.Warn("image cache read failed",
			slog.String("url", key),
			slog.String("error", err.Error()),
		)
	}

	img, err = s.fetch(ctx, key)
	if err != nil {
		s.metrics.ImageLookup("error")
		return nil, err
	}
	s.metrics.ImageLookup("miss")

	if err := s.cache.PutImage(ctx, img); err != nil {
		s.logger.Error("failed to cache image",
			slog.String("url", key),
			slog.String("error", err.Error()),
		)
	}
	return img, nil
}

func (s *ImageService) fetch(ctx context.Context, rawURL string) (*model.CachedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperror.ValidationFailed("url", "Image URL is not valid")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, errBlockedAddress) {
			return nil, apperror.ValidationFailed("url", "Image host is not allowed")
		}
		return nil, apperror.Upstream("Image could not be fetched", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Upstream("Image could not be fetched", fmt.Errorf("status %d", resp.StatusCode))
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, apperror.Upstream("URL did not return an image", fmt.Errorf("content type %q", resp.Header.Get("Content-Type")))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, apperror.Upstream("Image could not be fetched", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperror.Upstream("Image is too large", fmt.Errorf("more than %d bytes", s.maxBytes))
	}

	return &model.CachedImage{
		URL:         rawURL,
		ContentType: mediaType,
		Data:        data,
		FetchedAt:   s.now().UTC(),
	}, nil
}

// Clear empties the image cache and returns how many images were dropped.
func (s *ImageService) Clear(ctx context.Context) (int, error) {
	n, err := s.cache.ClearImages(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("image cache cleared", slog.Int("images", n))
	return n, nil
}
