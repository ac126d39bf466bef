// Package engine wraps the OCI-compatible container engine client used
// throughout the dispatcher. It is initialized exactly once at process
// startup and shared, read-only, by every other component.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// LabelKey is the grouping label applied to (and required of) every
// container this dispatcher considers its own.
const LabelKey = "dispatcher.namespace"

// Transport selects how the Client connects to the container engine.
type Transport int

const (
	TransportSocket Transport = iota
	TransportHTTP
	TransportTLS
)

// ParseTransport parses a transport flag value.
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(s) {
	case "socket", "":
		return TransportSocket, nil
	case "http":
		return TransportHTTP, nil
	case "tls":
		return TransportTLS, nil
	default:
		return 0, fmt.Errorf("unknown transport %q", s)
	}
}

// Client is a typed handle to the container engine. Construct it with
// Init; obtain the process-wide instance with Get.
type Client struct {
	cli *client.Client
}

var (
	current     *Client
	currentOnce sync.Once
	initErr     error
)

// Init connects to the container engine according to the given transport
// and stores the resulting handle as the process-wide singleton. Calling
// Init more than once has no effect beyond the first call; every caller
// observes the same handle (and the same initialization error, if any).
func Init(transport Transport) (*Client, error) {
	currentOnce.Do(func() {
		var opts []client.Opt
		switch transport {
		case TransportHTTP:
			opts = []client.Opt{client.WithHost("tcp://127.0.0.1:2375"), client.WithAPIVersionNegotiation()}
		case TransportTLS:
			opts = []client.Opt{client.WithHost("tcp://127.0.0.1:2376"), client.WithTLSClientConfigFromEnv(), client.WithAPIVersionNegotiation()}
		case TransportSocket:
			opts = []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
		default:
			initErr = fmt.Errorf("engine: unknown transport %d", transport)
			return
		}
		cli, err := client.NewClientWithOpts(opts...)
		if err != nil {
			initErr = fmt.Errorf("engine: connecting to container engine: %w", err)
			return
		}
		current = &Client{cli: cli}
	})
	return current, initErr
}

// Get returns the process-wide Client. It panics if Init has not been
// called yet; the Supervisor is responsible for calling Init first.
func Get() *Client {
	if current == nil {
		panic("engine: Get called before Init")
	}
	return current
}

// Summary is the subset of a container's list-view fields this system
// reads. Fields are intentionally sparse and tolerate absence.
type Summary struct {
	ID      string
	Names   []string
	Labels  map[string]string
	Created int64
	Status  string
}

// Name returns the summary's canonical job name: the first entry of
// Names with its leading slash stripped. Returns ("", false) if Names is
// empty.
func (s Summary) Name() (string, bool) {
	if len(s.Names) == 0 {
		return "", false
	}
	return strings.TrimPrefix(s.Names[0], "/"), true
}

func labelFilter(namespace string) filters.Args {
	args := filters.NewArgs()
	args.Add("label", fmt.Sprintf("%s=%s", LabelKey, namespace))
	return args
}

func toSummary(c container.Summary) Summary {
	return Summary{
		ID:      c.ID,
		Names:   c.Names,
		Labels:  c.Labels,
		Created: c.Created,
		Status:  string(c.State),
	}
}

// Ping probes the engine for liveness.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.cli.Ping(ctx); err != nil {
		return fmt.Errorf("engine: ping: %w", err)
	}
	return nil
}

// CreateResult is the outcome of a Create call.
type CreateResult struct {
	ID string
}

// Create creates a container under the given name and grouping
// namespace. The namespace is forcibly inserted into the container's
// labels, overwriting any caller-supplied value for LabelKey. A (nil,
// nil) result indicates the engine reported a name conflict (HTTP 409);
// any other engine error is returned wrapped with the container name.
func (c *Client) Create(ctx context.Context, name string, platform *string, cfg *container.Config, namespace string) (*CreateResult, error) {
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}
	cfg.Labels[LabelKey] = namespace

	var platformSpec *ocispec.Platform
	if platform != nil {
		platformSpec = &ocispec.Platform{OS: *platform}
	}

	resp, err := c.cli.ContainerCreate(ctx, cfg, nil, nil, platformSpec, name)
	if err != nil {
		if errdefs.IsConflict(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("engine: create %q: %w", name, err)
	}
	return &CreateResult{ID: resp.ID}, nil
}

// Start starts a previously created container.
func (c *Client) Start(ctx context.Context, name string) error {
	if err := c.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("engine: start %q: %w", name, err)
	}
	return nil
}

// InspectResult is the subset of inspect output this system reads.
type InspectResult struct {
	Name       string
	FinishedAt string
	Status     string
}

// Inspect fetches detailed state for a container.
func (c *Client) Inspect(ctx context.Context, name string) (*InspectResult, error) {
	detail, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("engine: inspect %q: %w", name, err)
	}
	res := &InspectResult{Name: detail.Name}
	if detail.State != nil {
		res.Status = detail.State.Status
		res.FinishedAt = detail.State.FinishedAt
	}
	return res, nil
}

// Get returns the single container named name within namespace, or nil
// if none matches.
func (c *Client) Get(ctx context.Context, name string, namespace string) (*Summary, error) {
	args := labelFilter(namespace)
	args.Add("name", fmt.Sprintf("^/%s$", name))
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Limit: 1, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("engine: get %q: %w", name, err)
	}
	if len(containers) == 0 {
		return nil, nil
	}
	s := toSummary(containers[0])
	return &s, nil
}

// CountActive returns the number of running or restarting containers in
// namespace.
func (c *Client) CountActive(ctx context.Context, namespace string) (int, error) {
	args := labelFilter(namespace)
	args.Add("status", "restarting")
	args.Add("status", "running")
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return 0, fmt.Errorf("engine: count active: %w", err)
	}
	return len(containers), nil
}

func (c *Client) listByStatus(ctx context.Context, namespace, status string) ([]Summary, error) {
	args := labelFilter(namespace)
	args.Add("status", status)
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("engine: list %s: %w", status, err)
	}
	summaries := make([]Summary, 0, len(containers))
	for _, ctr := range containers {
		summaries = append(summaries, toSummary(ctr))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Created < summaries[j].Created
	})
	return summaries, nil
}

// GetPending returns created-but-not-started containers in namespace,
// oldest first.
func (c *Client) GetPending(ctx context.Context, namespace string) ([]Summary, error) {
	return c.listByStatus(ctx, namespace, "created")
}

// GetExited returns exited containers in namespace, oldest first.
func (c *Client) GetExited(ctx context.Context, namespace string) ([]Summary, error) {
	return c.listByStatus(ctx, namespace, "exited")
}

// Remove deletes a container.
func (c *Client) Remove(ctx context.Context, name string) error {
	if err := c.cli.ContainerRemove(ctx, name, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("engine: remove %q: %w", name, err)
	}
	return nil
}

// Event is the subset of an engine event this system reads.
type Event struct {
	Action   string
	ExitCode string
	HasCode  bool
}

// Events opens the engine's event stream, filtered to this namespace's
// grouping label. The returned channel is closed when ctx is canceled or
// the stream ends; errc carries at most one error.
func (c *Client) Events(ctx context.Context, namespace string) (<-chan Event, <-chan error) {
	args := labelFilter(namespace)
	raw, rawErr := c.cli.Events(ctx, events.ListOptions{Filters: args})

	out := make(chan Event)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-rawErr:
				if !ok {
					return
				}
				if err != nil {
					errc <- fmt.Errorf("engine: events: %w", err)
				}
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				ev := Event{Action: string(msg.Action)}
				if code, present := msg.Actor.Attributes["exitCode"]; present {
					ev.ExitCode = code
					ev.HasCode = true
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, errc
}
