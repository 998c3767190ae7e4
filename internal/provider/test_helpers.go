package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/hashicorp/terraform-plugin-testing/terraform"

	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Test environment configuration constants.
const (
	// Environment variables for test configuration.
	EnvTestHost           = "SAMBA_TEST_HOST"
	EnvTestPort           = "SAMBA_TEST_PORT"
	EnvTestUsername       = "SAMBA_TEST_USERNAME"
	EnvTestPassword       = "SAMBA_TEST_PASSWORD"
	EnvTestPrivateKeyFile = "SAMBA_TEST_PRIVATE_KEY_FILE"
	EnvTestKnownHostsFile = "SAMBA_TEST_KNOWN_HOSTS_FILE"
	EnvTestUseSudo        = "SAMBA_TEST_USE_SUDO"
	EnvTestOU             = "SAMBA_TEST_OU"

	// Test object name prefixes to avoid conflicts.
	TestGroupPrefix = "tf-grp-"
	TestUserPrefix  = "tf-usr-"

	// TestPassword satisfies the default complexity policy.
	TestPassword = "Tf-Acc-Passw0rd!"
)

// TestConfig holds common test configuration.
type TestConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	PrivateKeyFile string
	KnownHostsFile string
	UseSudo        bool
	OU             string
}

// GetTestConfig returns the test configuration from environment variables.
func GetTestConfig() *TestConfig {
	config := &TestConfig{
		Host:           os.Getenv(EnvTestHost),
		Port:           22,
		Username:       getEnvWithDefault(EnvTestUsername, "root"),
		Password:       os.Getenv(EnvTestPassword),
		PrivateKeyFile: os.Getenv(EnvTestPrivateKeyFile),
		KnownHostsFile: os.Getenv(EnvTestKnownHostsFile),
		OU:             os.Getenv(EnvTestOU),
	}

	if port, err := strconv.Atoi(os.Getenv(EnvTestPort)); err == nil {
		config.Port = port
	}
	if useSudo, err := strconv.ParseBool(os.Getenv(EnvTestUseSudo)); err == nil {
		config.UseSudo = useSudo
	}

	return config
}

// SessionConfig converts the test configuration for direct use of the samba package.
func (c *TestConfig) SessionConfig() *samba.SessionConfig {
	cfg := samba.DefaultSessionConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.Username = c.Username
	cfg.Password = c.Password
	cfg.PrivateKeyFile = c.PrivateKeyFile
	cfg.KnownHostsFile = c.KnownHostsFile
	cfg.HostKeyPolicy = samba.HostKeyPolicyAcceptNew
	cfg.UseSudo = c.UseSudo
	return cfg
}

// IsAccTest returns true if acceptance tests should run.
func IsAccTest() bool {
	return os.Getenv("TF_ACC") != ""
}

// SkipIfNotAccTest skips the test if TF_ACC is not set.
func SkipIfNotAccTest(t *testing.T) {
	if !IsAccTest() {
		t.Skip("Skipping acceptance test - set TF_ACC=1 to run")
	}
}

// testAccPreCheckWithConfig validates the acceptance test environment.
func testAccPreCheckWithConfig(t *testing.T) *TestConfig {
	SkipIfNotAccTest(t)

	config := GetTestConfig()

	if config.Host == "" {
		t.Skipf("Skipping test: %s must be set to a Samba domain controller", EnvTestHost)
	}

	if config.Password == "" && config.PrivateKeyFile == "" {
		t.Skipf("Skipping test: %s or %s must be set", EnvTestPassword, EnvTestPrivateKeyFile)
	}

	return config
}

// TestProviderConfig generates provider configuration for tests.
func TestProviderConfig() string {
	config := GetTestConfig()

	var providerConfig strings.Builder
	providerConfig.WriteString("provider \"samba\" {\n")
	providerConfig.WriteString(fmt.Sprintf("  host = %q\n", config.Host))
	providerConfig.WriteString(fmt.Sprintf("  port = %d\n", config.Port))
	providerConfig.WriteString(fmt.Sprintf("  username = %q\n", config.Username))
	providerConfig.WriteString("  host_key_policy = \"accept-new\"\n")

	if config.PrivateKeyFile != "" {
		providerConfig.WriteString(fmt.Sprintf("  private_key_file = %q\n", config.PrivateKeyFile))
	}
	if config.Password != "" {
		providerConfig.WriteString(fmt.Sprintf("  password = %q\n", config.Password))
	}
	if config.KnownHostsFile != "" {
		providerConfig.WriteString(fmt.Sprintf("  known_hosts_file = %q\n", config.KnownHostsFile))
	}
	if config.UseSudo {
		providerConfig.WriteString("  use_sudo = true\n")
	}

	providerConfig.WriteString("}\n")
	return providerConfig.String()
}

// GenerateTestName generates a unique account name within the 20 character limit.
func GenerateTestName(prefix string) string {
	timestamp := time.Now().Format("0102-1504")
	shortUUID := uuid.New().String()[:4]
	name := fmt.Sprintf("%s%s%s", prefix, timestamp, shortUUID)

	if len(name) > 20 {
		name = name[:20]
	}

	return name
}

// withDirectory opens a short-lived session for out-of-band checks.
func withDirectory(fn func(ctx context.Context, dir *samba.Directory, session *samba.Session) error) error {
	config := GetTestConfig().SessionConfig()
	ctx := context.Background()

	session, err := samba.Connect(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", config.Host, err)
	}
	defer session.Close()

	return fn(ctx, samba.NewDirectory(samba.NewExecutor(config.ExecutorConfig())), session)
}

// TestCheckUserExists verifies that the user named by the resource exists.
func TestCheckUserExists(resourceName string) resource.TestCheckFunc {
	return func(s *terraform.State) error {
		rs, ok := s.RootModule().Resources[resourceName]
		if !ok {
			return fmt.Errorf("resource not found: %s", resourceName)
		}

		if rs.Primary.ID == "" {
			return fmt.Errorf("resource ID not set")
		}

		name := rs.Primary.Attributes["name"]
		return withDirectory(func(ctx context.Context, dir *samba.Directory, session *samba.Session) error {
			if _, err := dir.GetUser(ctx, session, name); err != nil {
				return fmt.Errorf("user %s does not exist: %w", name, err)
			}
			return nil
		})
	}
}

// TestCheckUserDestroy verifies that all test users are destroyed.
func TestCheckUserDestroy(s *terraform.State) error {
	return checkDestroyed(s, "samba_user", func(ctx context.Context, dir *samba.Directory, session *samba.Session, name string) error {
		_, err := dir.GetUser(ctx, session, name)
		return err
	})
}

// TestCheckGroupExists verifies that the group named by the resource exists.
func TestCheckGroupExists(resourceName string) resource.TestCheckFunc {
	return func(s *terraform.State) error {
		rs, ok := s.RootModule().Resources[resourceName]
		if !ok {
			return fmt.Errorf("resource not found: %s", resourceName)
		}

		if rs.Primary.ID == "" {
			return fmt.Errorf("resource ID not set")
		}

		name := rs.Primary.Attributes["name"]
		return withDirectory(func(ctx context.Context, dir *samba.Directory, session *samba.Session) error {
			if _, err := dir.GetGroup(ctx, session, name); err != nil {
				return fmt.Errorf("group %s does not exist: %w", name, err)
			}
			return nil
		})
	}
}

// TestCheckGroupDestroy verifies that all test groups are destroyed.
func TestCheckGroupDestroy(s *terraform.State) error {
	return checkDestroyed(s, "samba_group", func(ctx context.Context, dir *samba.Directory, session *samba.Session, name string) error {
		_, err := dir.GetGroup(ctx, session, name)
		return err
	})
}

// TestCheckGroupDisappears deletes a group outside of Terraform.
func TestCheckGroupDisappears(resourceName string) resource.TestCheckFunc {
	return func(s *terraform.State) error {
		rs, ok := s.RootModule().Resources[resourceName]
		if !ok {
			return fmt.Errorf("resource not found: %s", resourceName)
		}

		name := rs.Primary.Attributes["name"]
		return withDirectory(func(ctx context.Context, dir *samba.Directory, session *samba.Session) error {
			if _, err := dir.RemoveGroup(ctx, session, name); err != nil {
				return fmt.Errorf("failed to manually delete group %s: %w", name, err)
			}
			return nil
		})
	}
}

// TestCheckGroupMembers verifies that a group has exactly the expected members.
func TestCheckGroupMembers(group string, expected ...string) resource.TestCheckFunc {
	return func(s *terraform.State) error {
		return withDirectory(func(ctx context.Context, dir *samba.Directory, session *samba.Session) error {
			members, err := dir.GroupMembers(ctx, session, group)
			if err != nil {
				return fmt.Errorf("failed to get members of %s: %w", group, err)
			}

			if len(members) != len(expected) {
				return fmt.Errorf("expected %d members of %s, found %d: %v", len(expected), group, len(members), members)
			}

			found := make(map[string]bool, len(members))
			for _, m := range members {
				found[strings.ToLower(m)] = true
			}
			for _, e := range expected {
				if !found[strings.ToLower(e)] {
					return fmt.Errorf("%s is not a member of %s", e, group)
				}
			}

			return nil
		})
	}
}

func checkDestroyed(s *terraform.State, resourceType string, get func(context.Context, *samba.Directory, *samba.Session, string) error) error {
	return withDirectory(func(ctx context.Context, dir *samba.Directory, session *samba.Session) error {
		for _, rs := range s.RootModule().Resources {
			if rs.Type != resourceType {
				continue
			}

			name := rs.Primary.Attributes["name"]
			err := get(ctx, dir, session, name)
			if err == nil {
				return fmt.Errorf("%s %s still exists", resourceType, name)
			}

			if !samba.IsNotFoundError(err) {
				return fmt.Errorf("unexpected error checking %s %s: %w", resourceType, name, err)
			}
		}

		return nil
	})
}

// Utility functions

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
