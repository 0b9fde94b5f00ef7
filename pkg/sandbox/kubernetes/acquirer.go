// Package kubernetes acquires per-run sandbox servers through agent-sandbox
// SandboxClaim resources.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	sandboxv1alpha1 "sigs.k8s.io/agent-sandbox/api/v1alpha1"
	extensionsv1alpha1 "sigs.k8s.io/agent-sandbox/extensions/api/v1alpha1"

	"github.com/rhuss/codesmith/pkg/sandbox/remote"
)

// DefaultPort is the port the sandbox server listens on inside the pod.
const DefaultPort = 8080

var _ remote.Acquirer = (*ClaimAcquirer)(nil)

// ClaimAcquirer creates a SandboxClaim per run, waits for the bound
// Sandbox to become ready, and returns its service URL. Releasing deletes
// the claim, which tears the pod down.
type ClaimAcquirer struct {
	client       client.Client
	template     string
	namespace    string
	timeout      time.Duration
	port         int
	pollInterval time.Duration
}

// NewClaimAcquirer creates a ClaimAcquirer.
func NewClaimAcquirer(c client.Client, template, namespace string, timeout time.Duration) *ClaimAcquirer {
	if namespace == "" {
		namespace = "default"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClaimAcquirer{
		client:       c,
		template:     template,
		namespace:    namespace,
		timeout:      timeout,
		port:         DefaultPort,
		pollInterval: 500 * time.Millisecond,
	}
}

// NewFromEnvironment builds a ClaimAcquirer using the in-cluster config or
// the local kubeconfig.
func NewFromEnvironment(template, namespace string, timeout time.Duration) (*ClaimAcquirer, error) {
	restCfg, err := ctrlconfig.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubernetes config: %w", err)
	}
	scheme, err := NewScheme()
	if err != nil {
		return nil, err
	}
	c, err := client.New(restCfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("create kubernetes client: %w", err)
	}
	return NewClaimAcquirer(c, template, namespace, timeout), nil
}

// NewScheme returns a runtime.Scheme with the agent-sandbox types registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := sandboxv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register sandbox types: %w", err)
	}
	if err := extensionsv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register extensions types: %w", err)
	}
	return scheme, nil
}

// Acquire creates a SandboxClaim and returns the sandbox URL
// (http://<serviceFQDN>:<port>) with a release function that deletes it.
func (a *ClaimAcquirer) Acquire(ctx context.Context) (string, func(), error) {
	claimName := generateClaimNameFn()

	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      claimName,
			Namespace: a.namespace,
			Labels:    map[string]string{"app.kubernetes.io/managed-by": "codesmith"},
		},
		Spec: extensionsv1alpha1.SandboxClaimSpec{
			TemplateRef: extensionsv1alpha1.SandboxTemplateRef{
				Name: a.template,
			},
		},
	}

	if err := a.client.Create(ctx, claim); err != nil {
		return "", nil, fmt.Errorf("create SandboxClaim %q: %w", claimName, err)
	}
	slog.Debug("created SandboxClaim", "name", claimName, "namespace", a.namespace, "template", a.template)

	fqdn, err := a.waitForReady(ctx, claimName)
	if err != nil {
		a.deleteClaim(context.Background(), claimName)
		return "", nil, err
	}

	url := fmt.Sprintf("http://%s:%d", fqdn, a.port)
	release := func() { a.deleteClaim(context.Background(), claimName) }

	slog.Debug("sandbox acquired", "name", claimName, "url", url)
	return url, release, nil
}

// waitForReady polls the Sandbox until its Ready condition is True and a
// service FQDN is published, or the timeout expires.
func (a *ClaimAcquirer) waitForReady(ctx context.Context, name string) (string, error) {
	deadline := time.After(a.timeout)
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	key := types.NamespacedName{Name: name, Namespace: a.namespace}
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled waiting for Sandbox %q: %w", name, ctx.Err())
		case <-deadline:
			return "", fmt.Errorf("timeout waiting for Sandbox %q to become ready (waited %s)", name, a.timeout)
		case <-ticker.C:
			sb := &sandboxv1alpha1.Sandbox{}
			if err := a.client.Get(ctx, key, sb); err != nil {
				// Not created by the controller yet.
				slog.Debug("waiting for Sandbox", "name", name, "error", err.Error())
				continue
			}
			if isReady(sb) && sb.Status.ServiceFQDN != "" {
				return sb.Status.ServiceFQDN, nil
			}
		}
	}
}

func isReady(sb *sandboxv1alpha1.Sandbox) bool {
	for _, c := range sb.Status.Conditions {
		if c.Type == string(sandboxv1alpha1.SandboxConditionReady) && c.Status == metav1.ConditionTrue {
			return true
		}
	}
	return false
}

// deleteClaim deletes a SandboxClaim. Errors are logged, not returned,
// since it runs from release and cleanup paths.
func (a *ClaimAcquirer) deleteClaim(ctx context.Context, name string) {
	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: a.namespace},
	}
	if err := a.client.Delete(ctx, claim); err != nil {
		slog.Warn("failed to delete SandboxClaim", "name", name, "namespace", a.namespace, "error", err.Error())
		return
	}
	slog.Debug("deleted SandboxClaim", "name", name, "namespace", a.namespace)
}

// generateClaimNameFn creates a unique SandboxClaim name. Replaceable in
// tests.
var generateClaimNameFn = func() string {
	return "codesmith-run-" + uuid.NewString()[:8]
}
