package deploykey

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/imamik/proxk8s/internal/reconcile"
	"github.com/imamik/proxk8s/internal/util/keygen"
	"github.com/imamik/proxk8s/internal/util/labels"
)

// Resource kinds used in plans and reports.
const (
	KindKeyPair          = "KeyPair"
	KindRepositorySecret = "RepositorySecret"
	KindDeployKey        = "DeployKey"
)

// ConfigMap and Secret keys.
const (
	PublicKeyField   = "publicKey"
	FingerprintField = "fingerprint"
	privateKeyField  = "sshPrivateKey"

	argoSecretTypeLabel = "argocd.argoproj.io/secret-type"
)

// ErrPrivateKeyLost is returned when the public key is stored but the
// repository Secret no longer holds the private half. Deleting the public
// key ConfigMap allows a new pair to be generated.
var ErrPrivateKeyLost = errors.New("repository secret has no private key; delete the public key ConfigMap to rotate")

// State is the lifecycle state of the repository key.
type State int

const (
	NoKeyMaterial State = iota
	KeyMaterialStored
	DeployKeyRegistered
)

func (s State) String() string {
	switch s {
	case KeyMaterialStored:
		return "KeyMaterialStored"
	case DeployKeyRegistered:
		return "DeployKeyRegistered"
	default:
		return "NoKeyMaterial"
	}
}

// Options configures a Manager.
type Options struct {
	Cluster   string
	Namespace string
	ConfigMap string
	Secret    string
	RepoURL   string

	Providers ProviderFactory
	// Generate creates a new key pair. Defaults to a 4096-bit RSA pair.
	Generate func() (*keygen.KeyPair, error)
}

// Manager drives the repository key through its lifecycle.
type Manager struct {
	client client.Client
	opts   Options
}

// NewManager creates a manager.
func NewManager(c client.Client, opts Options) *Manager {
	if opts.Generate == nil {
		opts.Generate = func() (*keygen.KeyPair, error) {
			return keygen.GenerateRSAKeyPair(keygen.DeployKeyBits)
		}
	}
	return &Manager{client: c, opts: opts}
}

// Inspect reads the stored public key.
func (m *Manager) Inspect(ctx context.Context) (reconcile.Observed[string], error) {
	var cm corev1.ConfigMap
	err := m.client.Get(ctx, client.ObjectKey{Namespace: m.opts.Namespace, Name: m.opts.ConfigMap}, &cm)
	if apierrors.IsNotFound(err) {
		return reconcile.Absent[string](), nil
	}
	if err != nil {
		return reconcile.Observed[string]{}, reconcile.Unreachable("kubernetes", err)
	}
	key, ok := cm.Data[PublicKeyField]
	if !ok || key == "" {
		return reconcile.Absent[string](), nil
	}
	return reconcile.Found(key), nil
}

// PlanStore plans the key pair transition and the repository Secret.
func (m *Manager) PlanStore(ctx context.Context) (*reconcile.Plan, error) {
	observed, err := m.Inspect(ctx)
	if err != nil {
		return nil, err
	}

	plan := &reconcile.Plan{}
	keyPair := reconcile.Action{
		Kind:   KindKeyPair,
		Target: m.opts.RepoURL,
		Name:   m.opts.ConfigMap,
		Type:   reconcile.DecideEnsure(observed),
	}
	if observed.Exists {
		keyPair.Observed, _ = keygen.Fingerprint([]byte(observed.Value))
	} else {
		keyPair.Desired = fmt.Sprintf("rsa-%d", keygen.DeployKeyBits)
		keyPair.Apply = m.generate
	}
	plan.Add(keyPair)

	if observed.Exists {
		action, err := m.planSecret(ctx)
		if err != nil {
			return nil, err
		}
		plan.Add(action)
	}
	return plan, nil
}

// generate is the NoKeyMaterial -> KeyMaterialStored transition. The
// Secret is written before the ConfigMap so that an interrupted run is
// retried from scratch on the next one.
func (m *Manager) generate(ctx context.Context) error {
	current, err := m.Inspect(ctx)
	if err != nil {
		return err
	}
	if current.Exists {
		return reconcile.ErrIrreversibleActionSkipped
	}

	kp, err := m.opts.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}
	defer kp.Wipe()

	fingerprint, err := keygen.Fingerprint(kp.PublicKey)
	if err != nil {
		return err
	}

	secret := m.secretObject()
	_, err = controllerutil.CreateOrUpdate(ctx, m.client, secret, func() error {
		m.mutateSecret(secret)
		secret.Data[privateKeyField] = append([]byte(nil), kp.PrivateKey...)
		return nil
	})
	if secret.Data != nil {
		keygen.Zero(secret.Data[privateKeyField])
	}
	if err != nil {
		return fmt.Errorf("failed to store private key in secret %s: %w", m.opts.Secret, err)
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: m.opts.Namespace,
			Name:      m.opts.ConfigMap,
			Labels:    m.labels(),
		},
		Data: map[string]string{
			PublicKeyField:   string(kp.PublicKey),
			FingerprintField: fingerprint,
		},
	}
	if err := m.client.Create(ctx, cm); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return fmt.Errorf("public key configmap %s: %w", m.opts.ConfigMap, reconcile.ErrResourceConflict)
		}
		return fmt.Errorf("failed to store public key: %w", err)
	}
	return nil
}

// planSecret keeps the repository Secret's URL and labels current while
// leaving the private key untouched.
func (m *Manager) planSecret(ctx context.Context) (reconcile.Action, error) {
	action := reconcile.Action{
		Kind:    KindRepositorySecret,
		Target:  m.opts.RepoURL,
		Name:    m.opts.Secret,
		Desired: m.opts.RepoURL,
	}

	var secret corev1.Secret
	err := m.client.Get(ctx, client.ObjectKey{Namespace: m.opts.Namespace, Name: m.opts.Secret}, &secret)
	switch {
	case apierrors.IsNotFound(err):
		action.Type = reconcile.ActionCreate
		action.Observed = "absent"
		action.Apply = func(context.Context) error { return ErrPrivateKeyLost }
		return action, nil
	case err != nil:
		return action, reconcile.Unreachable("kubernetes", err)
	}

	if len(secret.Data[privateKeyField]) == 0 {
		action.Type = reconcile.ActionUpdate
		action.Observed = "no private key"
		action.Apply = func(context.Context) error { return ErrPrivateKeyLost }
		return action, nil
	}

	action.Observed = string(secret.Data["url"])
	inSync := action.Observed == m.opts.RepoURL &&
		string(secret.Data["type"]) == "git" &&
		secret.Labels[argoSecretTypeLabel] == "repository"
	if inSync {
		action.Type = reconcile.ActionNoop
	} else {
		action.Type = reconcile.ActionUpdate
		action.Apply = func(ctx context.Context) error {
			obj := m.secretObject()
			_, err := controllerutil.CreateOrUpdate(ctx, m.client, obj, func() error {
				m.mutateSecret(obj)
				return nil
			})
			return err
		}
	}
	return action, nil
}

func (m *Manager) secretObject() *corev1.Secret {
	return &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: m.opts.Namespace, Name: m.opts.Secret}}
}

func (m *Manager) mutateSecret(s *corev1.Secret) {
	if s.Labels == nil {
		s.Labels = map[string]string{}
	}
	for k, v := range m.labels() {
		s.Labels[k] = v
	}
	s.Labels[argoSecretTypeLabel] = "repository"
	s.Type = corev1.SecretTypeOpaque
	if s.Data == nil {
		s.Data = map[string][]byte{}
	}
	s.Data["type"] = []byte("git")
	s.Data["url"] = []byte(m.opts.RepoURL)
}

func (m *Manager) labels() map[string]string {
	return labels.NewLabelBuilder(m.opts.Cluster).Build()
}

// PlanRegistration plans the KeyMaterialStored -> DeployKeyRegistered
// transition. It must run after the store plan has been applied.
func (m *Manager) PlanRegistration(ctx context.Context) (*reconcile.Plan, State, error) {
	plan := &reconcile.Plan{}

	stored, err := m.Inspect(ctx)
	if err != nil {
		return nil, NoKeyMaterial, err
	}
	if !stored.Exists {
		return nil, NoKeyMaterial, fmt.Errorf("public key configmap %s/%s is absent", m.opts.Namespace, m.opts.ConfigMap)
	}

	fingerprint, err := keygen.Fingerprint([]byte(stored.Value))
	if err != nil {
		return nil, KeyMaterialStored, fmt.Errorf("stored public key is unreadable: %w", err)
	}

	action := reconcile.Action{
		Kind:    KindDeployKey,
		Target:  m.opts.RepoURL,
		Desired: fingerprint,
	}

	remote, err := ParseRemote(m.opts.RepoURL)
	if err != nil {
		return nil, KeyMaterialStored, err
	}
	action.Name = remote.Path

	kind := Detect(remote.Host)
	if kind == ProviderUnknown {
		action.Type = reconcile.ActionNoop
		action.Observed = "unrecognized provider " + remote.Host
		plan.Add(action)
		return plan, KeyMaterialStored, nil
	}

	provider, err := m.opts.Providers(kind, remote.Host)
	if err != nil {
		action.Type = reconcile.ActionCreate
		action.Apply = warnOrFail(err)
		plan.Add(action)
		return plan, KeyMaterialStored, nil
	}

	existing, err := provider.ListDeployKeys(ctx, remote.Path)
	if err != nil {
		action.Type = reconcile.ActionCreate
		action.Apply = warnOrFail(err)
		plan.Add(action)
		return plan, KeyMaterialStored, nil
	}

	observed := reconcile.Absent[string]()
	for _, k := range existing {
		if fp, err := keygen.Fingerprint([]byte(k.PublicKey)); err == nil && fp == fingerprint {
			observed = reconcile.Found(fp)
			break
		}
	}

	action.Type = reconcile.DecideEnsure(observed)
	if observed.Exists {
		action.Observed = observed.Value
		plan.Add(action)
		return plan, DeployKeyRegistered, nil
	}

	publicKey, err := keygen.Normalize([]byte(stored.Value))
	if err != nil {
		return nil, KeyMaterialStored, err
	}
	title := "proxk8s-" + m.opts.Cluster
	action.Observed = fmt.Sprintf("%d other keys", len(existing))
	action.Apply = func(ctx context.Context) error {
		if err := provider.AddDeployKey(ctx, remote.Path, title, publicKey); err != nil {
			return warnOrFail(err)(ctx)
		}
		return nil
	}
	plan.Add(action)
	return plan, KeyMaterialStored, nil
}

func warnOrFail(err error) func(context.Context) error {
	return func(context.Context) error {
		if bestEffort(err) {
			return reconcile.Warning(err)
		}
		return err
	}
}
