// SPDX-License-Identifier: MIT

// Package mockup provides GPIO mockups using the Linux gpio-mockup kernel
// module.
//
// The mocked chips register with the sysfs pin-export interface like any
// other GPIO controller, so they can back integration tests of opi5 and
// sysfs on machines without pin headers. Line levels are driven through the
// module's debugfs pull files.
//
// Requires the gpio-mockup module, debugfs, and root.
package mockup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Mockup represents a number of GPIO chips being mocked.
type Mockup struct {
	mu sync.Mutex
	cc []Chip
}

// Chip represents a single mocked GPIO chip.
type Chip struct {
	// The chardev name, e.g. gpiochip0.
	Name string

	// The chip label, e.g. gpio-mockup-A.
	Label string

	// The first kernel GPIO number on the chip.
	Base int

	// The number of lines on the chip.
	Lines int

	// The debugfs directory holding the line pull files.
	DbgfsPath string
}

const (
	classPath = "/sys/class/gpio"
	dbgfsRoot = "/sys/kernel/debug/gpio-mockup"
)

// New creates a new Mockup.
//
// One chip is mocked per entry in lines, with the entry specifying the
// number of lines on the chip. Only one Mockup can exist on a system at a
// time; any existing gpio-mockup module is unloaded first.
func New(lines []int) (*Mockup, error) {
	if len(lines) == 0 {
		return nil, unix.EINVAL
	}
	if err := IsSupported(); err != nil {
		return nil, err
	}
	// remove any existing mockup setup
	exec.Command("rmmod", "gpio-mockup").Run()

	rangesArg := "gpio_mockup_ranges="
	for _, l := range lines {
		rangesArg += fmt.Sprintf("-1,%d,", l)
	}
	rangesArg = strings.TrimSuffix(rangesArg, ",")

	um, err := newUdevMonitor()
	if err != nil {
		return nil, errors.Wrap(err, "failed to start udev monitor")
	}
	defer um.close()

	cmd := exec.Command("modprobe", "gpio-mockup", rangesArg)
	if err = cmd.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to load gpio-mockup")
	}
	if err = unix.Access(dbgfsRoot, unix.R_OK|unix.W_OK); err != nil {
		return nil, errors.Wrap(err, "no gpio-mockup debugfs")
	}
	names, err := um.chipNames(len(lines))
	if err != nil {
		return nil, err
	}
	cc := make([]Chip, len(lines))
	for i, l := range lines {
		label := fmt.Sprintf("gpio-mockup-%c", 'A'+i)
		base, err := findBase(label)
		if err != nil {
			return nil, err
		}
		var num int
		if _, err = fmt.Sscanf(names[i], "gpiochip%d", &num); err != nil {
			return nil, errors.Wrapf(err, "failed to parse chip num from %q", names[i])
		}
		cc[i] = Chip{
			Name:      names[i],
			Label:     label,
			Base:      base,
			Lines:     l,
			DbgfsPath: fmt.Sprintf("%s/gpiochip%d/", dbgfsRoot, num),
		}
	}
	m := Mockup{cc: cc}
	return &m, nil
}

// findBase locates the sysfs controller entry with the given label and
// returns its first kernel GPIO number.
func findBase(label string) (int, error) {
	ee, err := os.ReadDir(classPath)
	if err != nil {
		return 0, err
	}
	for _, e := range ee {
		if !strings.HasPrefix(e.Name(), "gpiochip") {
			continue
		}
		dir := filepath.Join(classPath, e.Name())
		l, err := os.ReadFile(filepath.Join(dir, "label"))
		if err != nil || strings.TrimSpace(string(l)) != label {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, "base"))
		if err != nil {
			return 0, err
		}
		return strconv.Atoi(strings.TrimSpace(string(b)))
	}
	return 0, errors.Errorf("no sysfs controller labelled %q", label)
}

// Chip returns the mocked chip indicated by num.
func (m *Mockup) Chip(num int) (*Chip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if num < 0 || num >= len(m.cc) {
		return nil, ErrorIndexRange{num, len(m.cc)}
	}
	return &m.cc[num], nil
}

// Chips returns the number of chips mocked.
func (m *Mockup) Chips() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cc)
}

// Close releases all resources held by the Mockup and unloads the
// gpio-mockup module.
func (m *Mockup) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cc = []Chip{}
	return exec.Command("rmmod", "gpio-mockup").Run()
}

// Pin returns the kernel GPIO number of the line, suitable for the sysfs
// export interface.
func (c *Chip) Pin(line int) int {
	return c.Base + line
}

// Value returns the level of the line.
func (c *Chip) Value(line int) (int, error) {
	if line < 0 || line >= c.Lines {
		return 0, ErrorIndexRange{line, c.Lines}
	}
	v, err := os.ReadFile(fmt.Sprintf("%s%d", c.DbgfsPath, line))
	if err != nil {
		return 0, err
	}
	if len(v) > 0 && v[0] == '1' {
		return 1, nil
	}
	return 0, nil
}

// SetValue sets the pull of the line, driving the level seen by an input.
func (c *Chip) SetValue(line int, value int) error {
	if line < 0 || line >= c.Lines {
		return ErrorIndexRange{line, c.Lines}
	}
	v := []byte{'0'}
	if value != 0 {
		v[0] = '1'
	}
	return os.WriteFile(fmt.Sprintf("%s%d", c.DbgfsPath, line), v, 0)
}

// IsSupported returns an error if this platform cannot run a Mockup.
func IsSupported() error {
	return checkKernelVersion([3]int{5, 1, 0})
}

// kernelVersion returns the running kernel version as major, minor, patch.
func kernelVersion() ([3]int, error) {
	var v [3]int
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return v, err
	}
	release := string(uts.Release[:])
	if i := strings.IndexByte(release, 0); i >= 0 {
		release = release[:i]
	}
	ff := strings.SplitN(release, ".", 3)
	if len(ff) < 3 {
		return v, errors.Errorf("can't parse kernel release %q", release)
	}
	for i, f := range ff {
		// trim any -suffix from the patch field
		if n := strings.IndexFunc(f, func(r rune) bool {
			return r < '0' || r > '9'
		}); n >= 0 {
			f = f[:n]
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return v, errors.Wrapf(err, "can't parse kernel release %q", release)
		}
		v[i] = n
	}
	return v, nil
}

func checkKernelVersion(min [3]int) error {
	kv, err := kernelVersion()
	if err != nil {
		return err
	}
	for i := range min {
		if kv[i] > min[i] {
			return nil
		}
		if kv[i] < min[i] {
			return ErrorBadVersion{Need: min, Have: kv}
		}
	}
	return nil
}

// ErrorIndexRange indicates the requested index is out of range.
type ErrorIndexRange struct {
	Req   int
	Limit int
}

func (e ErrorIndexRange) Error() string {
	return fmt.Sprintf("index out of range - got %d, limit is %d.", e.Req, e.Limit)
}

// ErrorBadVersion indicates the kernel version is insufficient.
type ErrorBadVersion struct {
	Need [3]int
	Have [3]int
}

func (e ErrorBadVersion) Error() string {
	return fmt.Sprintf("require kernel %d.%d.%d or later, but running %d.%d.%d",
		e.Need[0], e.Need[1], e.Need[2], e.Have[0], e.Have[1], e.Have[2])
}
