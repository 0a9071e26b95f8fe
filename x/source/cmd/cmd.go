package cmd

import (
	"context"
	"net/netip"
	"os/exec"
	"runtime"
	"time"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/source"
	"github.com/jxo-me/ddnsd/internal/util"
	"github.com/pkg/errors"
)

const (
	Code = "cmd"

	defaultTimeout = 10 * time.Second
)

type Options struct {
	IPv4    string
	IPv6    string
	Timeout time.Duration
}

// Source runs a shell command and takes the first address of the family
// from its combined output.
type Source struct {
	cmds    map[ddns.IPVersion]string
	timeout time.Duration
}

var _ source.ISource = (*Source)(nil)

func New(opts Options) (*Source, error) {
	if opts.IPv4 == "" && opts.IPv6 == "" {
		return nil, errors.New("at least one command is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Source{
		cmds: map[ddns.IPVersion]string{
			ddns.V4: opts.IPv4,
			ddns.V6: opts.IPv6,
		},
		timeout: opts.Timeout,
	}, nil
}

func (s *Source) String() string {
	return Code
}

func (s *Source) Fetch(ctx context.Context, version ddns.IPVersion) (netip.Addr, error) {
	cmd := s.cmds[version]
	if cmd == "" {
		return netip.Addr{}, errors.Errorf("no command configured for %s", version)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	execCmd := shell(ctx, cmd)
	out, err := execCmd.CombinedOutput()
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, "run %q: %q", cmd, out)
	}
	addr, ok := util.FindAddr(string(out), version)
	if !ok {
		return netip.Addr{}, errors.Errorf("run %q: no %s address in output %q", cmd, version, out)
	}
	return addr, nil
}

// shell runs cmd with powershell on windows, bash if present and sh otherwise.
func shell(ctx context.Context, cmd string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "powershell", "-Command", cmd)
	}
	if _, err := exec.LookPath("bash"); err != nil {
		return exec.CommandContext(ctx, "sh", "-c", cmd)
	}
	return exec.CommandContext(ctx, "bash", "-c", cmd)
}
