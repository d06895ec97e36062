package backup

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/utilitywarehouse/git-backup/provider"
)

func TestConfig_validate(t *testing.T) {
	gh := &provider.GitHubConfig{Token: "ghp_123"}
	gl := &provider.GitLabConfig{Token: "glpat-123"}

	tests := []struct {
		name    string
		conf    Config
		wantErr bool
	}{
		{"valid", Config{Target: "/backup", Transport: TransportGoGit, Sources: []Source{{GitHub: gh}, {GitLab: gl}}}, false},
		{"valid_git", Config{Target: "/backup", Transport: TransportGit, Concurrency: 4, Sources: []Source{{GitHub: gh}}}, false},
		{"missing_target", Config{Transport: TransportGoGit, Sources: []Source{{GitHub: gh}}}, true},
		{"negative_concurrency", Config{Target: "/backup", Transport: TransportGoGit, Concurrency: -1, Sources: []Source{{GitHub: gh}}}, true},
		{"invalid_transport", Config{Target: "/backup", Transport: "libgit2", Sources: []Source{{GitHub: gh}}}, true},
		{"no_sources", Config{Target: "/backup", Transport: TransportGoGit}, true},
		{"empty_source", Config{Target: "/backup", Transport: TransportGoGit, Sources: []Source{{}}}, true},
		{"both_providers", Config{Target: "/backup", Transport: TransportGoGit, Sources: []Source{{GitHub: gh, GitLab: gl}}}, true},
		{"invalid_github", Config{Target: "/backup", Transport: TransportGoGit, Sources: []Source{{GitHub: &provider.GitHubConfig{}}}}, true},
		{"invalid_gitlab", Config{Target: "/backup", Transport: TransportGoGit, Sources: []Source{{GitLab: &provider.GitLabConfig{}}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_ValidateAndApplyDefaults(t *testing.T) {
	conf := Config{
		Target:            "~/backup",
		SSHKnownHostsPath: "~/.ssh/known_hosts",
		Sources: []Source{
			{GitHub: &provider.GitHubConfig{App: &provider.GitHubAppConfig{
				ID: "1", InstallationID: "2", PrivateKeyPath: "~/app.pem",
			}}},
			{GitLab: &provider.GitLabConfig{Token: "glpat-123"}},
		},
	}

	if err := conf.ValidateAndApplyDefaults("/home/alice"); err != nil {
		t.Fatalf("unexpected err:%v", err)
	}

	want := Config{
		Target:            "/home/alice/backup",
		Transport:         TransportGoGit,
		SSHKeyPath:        "/home/alice/.ssh/id_rsa",
		SSHKnownHostsPath: "/home/alice/.ssh/known_hosts",
		Sources: []Source{
			{GitHub: &provider.GitHubConfig{App: &provider.GitHubAppConfig{
				ID: "1", InstallationID: "2", PrivateKeyPath: "/home/alice/app.pem",
			}}},
			{GitLab: &provider.GitLabConfig{Token: "glpat-123"}},
		},
	}
	if diff := cmp.Diff(want, conf); diff != "" {
		t.Errorf("ValidateAndApplyDefaults() mismatch (-want +got):\n%s", diff)
	}

	// explicit values are kept
	conf = Config{
		Target:     "/srv/backup",
		Transport:  TransportGit,
		SSHKeyPath: "/etc/git-backup/key",
		Sources:    []Source{{GitHub: &provider.GitHubConfig{Token: "ghp_123"}}},
	}
	if err := conf.ValidateAndApplyDefaults("/home/alice"); err != nil {
		t.Fatalf("unexpected err:%v", err)
	}
	if conf.Transport != TransportGit || conf.SSHKeyPath != "/etc/git-backup/key" || conf.Target != "/srv/backup" {
		t.Errorf("explicit values changed: %+v", conf)
	}
}

func TestConfig_ValidateAndApplyDefaults_unknownHome(t *testing.T) {
	conf := Config{
		Target:  "/srv/backup",
		Sources: []Source{{GitHub: &provider.GitHubConfig{Token: "ghp_123"}}},
	}
	if err := conf.ValidateAndApplyDefaults(""); err != nil {
		t.Fatalf("unexpected err:%v", err)
	}
	if conf.SSHKeyPath != "" {
		t.Errorf("SSHKeyPath = %q, want empty without home dir", conf.SSHKeyPath)
	}

	tests := []struct {
		name string
		conf Config
	}{
		{"target", Config{Target: "~/backup", Sources: []Source{{GitHub: &provider.GitHubConfig{Token: "ghp_123"}}}}},
		{"ssh_key_path", Config{Target: "/srv/backup", SSHKeyPath: "~/.ssh/id_rsa", Sources: []Source{{GitHub: &provider.GitHubConfig{Token: "ghp_123"}}}}},
		{"ssh_known_hosts_path", Config{Target: "/srv/backup", SSHKnownHostsPath: "~/.ssh/known_hosts", Sources: []Source{{GitHub: &provider.GitHubConfig{Token: "ghp_123"}}}}},
		{"app_key", Config{Target: "/srv/backup", Sources: []Source{{GitHub: &provider.GitHubConfig{App: &provider.GitHubAppConfig{
			ID: "1", InstallationID: "2", PrivateKeyPath: "~/app.pem",
		}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.ValidateAndApplyDefaults("")
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("ValidateAndApplyDefaults() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), "home directory is unknown") {
				t.Errorf("ValidateAndApplyDefaults() error = %v, want home directory error", err)
			}
		})
	}
}
