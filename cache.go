package svsim

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// romEntry holds a fully loaded ROM primitive's initial contents, keyed
// by address, with zero as the default for unlisted addresses (§6).
type romEntry struct {
	addrWidth int
	dataWidth int
	values    map[uint64]uint64
}

// cacheEntry is one module-cache slot (§3's "module-cache entry").
type cacheEntry struct {
	absPath      string
	module       *Module
	isRom        bool
	romDataFile  string
	rom          *romEntry
	gateCost     int
	gateCostSet  bool
	gateCostErr  error
	inProgress   bool // cycle detection during gate-cost computation
}

// Cache is the process-wide module resolver and cache (§4.3). It is safe
// for concurrent reads; Resolve holds the cache's own write lock around
// parse-and-insert, and callers may also use one Cache per worker, per
// §5's cache-safety contract.
type Cache struct {
	mu      sync.RWMutex
	byKey   map[string]*cacheEntry // absPath + "\x00" + name
	byPath  map[string][]*Module   // absPath -> modules parsed from it
	parsed  map[string]bool        // absPath already parsed
}

// NewCache returns an empty module cache.
func NewCache() *Cache {
	return &Cache{
		byKey:  map[string]*cacheEntry{},
		byPath: map[string][]*Module{},
		parsed: map[string]bool{},
	}
}

// Clear discards all cached modules, so that edited .sv fixtures are
// re-read on the next Resolve. Grounded on pysvsim.py's
// clear_module_cache(), which test_runner.py calls before every file
// under test (§4.3, SUPPLEMENTED FEATURES).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = map[string]*cacheEntry{}
	c.byPath = map[string][]*Module{}
	c.parsed = map[string]bool{}
}

func cacheKey(absPath, name string) string {
	return absPath + "\x00" + name
}

// Resolve locates and parses the module named name, referenced from a
// file in referrerDir, per §4.3's algorithm: look for `<name>.sv` in the
// referrer's directory; on miss, fail with ModuleNotFound.
func (c *Cache) Resolve(name, referrerDir string) (*Module, error) {
	path := filepath.Join(referrerDir, name+".sv")
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, wrapErr(KindModuleNotFound, Location{Module: name}, err, "resolving path for module %q", name)
	}

	c.mu.RLock()
	if e, ok := c.byKey[cacheKey(abs, name)]; ok {
		c.mu.RUnlock()
		return e.module, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// re-check under write lock
	if e, ok := c.byKey[cacheKey(abs, name)]; ok {
		return e.module, nil
	}

	if _, err := os.Stat(abs); err != nil {
		return nil, wrapErr(KindModuleNotFound, Location{Module: name}, err, "module %q not found at %s", name, abs)
	}
	if !c.parsed[abs] {
		if err := c.parseAndInsertLocked(abs); err != nil {
			return nil, err
		}
	}
	e, ok := c.byKey[cacheKey(abs, name)]
	if !ok {
		return nil, newErr(KindModuleNotFound, Location{Module: name, File: abs}, "file %s does not define module %q", abs, name)
	}
	return e.module, nil
}

func (c *Cache) parseAndInsertLocked(abs string) error {
	src, err := os.ReadFile(abs)
	if err != nil {
		return wrapErr(KindModuleNotFound, Location{File: abs}, err, "reading %s", abs)
	}
	mods, err := NewParser(string(src), abs).ParseFile()
	if err != nil {
		return err
	}
	c.parsed[abs] = true
	c.byPath[abs] = mods
	dir := filepath.Dir(abs)
	for _, m := range mods {
		runWidthInference(m)
		entry := &cacheEntry{absPath: abs, module: m}
		detectRomPrimitive(entry, dir)
		c.byKey[cacheKey(abs, m.Name)] = entry
	}
	return nil
}

// detectRomPrimitive applies §4.3's ROM-primitive naming convention: a
// module named rom_* with no assignments or procedural blocks and exactly
// one address input and one data output is a ROM primitive.
func detectRomPrimitive(e *cacheEntry, dir string) {
	m := e.module
	if !strings.HasPrefix(m.Name, "rom_") {
		return
	}
	if len(m.Continuous) != 0 || len(m.Procedural) != 0 || len(m.Instances) != 0 {
		return
	}
	inputs := m.Inputs()
	outputs := m.Outputs()
	if len(inputs) != 1 || len(outputs) != 1 {
		return
	}
	e.isRom = true
	dataFileName := strings.TrimPrefix(m.Name, "rom_") + ".txt"
	e.romDataFile = findRomDataFile(dataFileName, dir)
}

// findRomDataFile searches, in order: the referrer's directory, a
// sibling roms/ directory, and roms/ relative to the working directory
// (§4.3).
func findRomDataFile(fileName, referrerDir string) string {
	candidates := []string{
		filepath.Join(referrerDir, fileName),
		filepath.Join(referrerDir, "roms", fileName),
		filepath.Join("roms", fileName),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// LoadRom parses and memoizes a ROM primitive's data file, per §4.3 and
// §6's ROM data file format. It is idempotent.
func (c *Cache) LoadRom(name, referrerDir string) (*romEntry, error) {
	m, err := c.Resolve(name, referrerDir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.Join(referrerDir, name+".sv"))
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.byKey[cacheKey(abs, name)]
	if e == nil || !e.isRom {
		return nil, newErr(KindModuleNotFound, Location{Module: name}, "module %q is not a ROM primitive", name)
	}
	if e.rom != nil {
		return e.rom, nil
	}
	if e.romDataFile == "" {
		return nil, newErr(KindRomDataMissing, Location{Module: name, File: abs}, "no data file found for ROM primitive %q", name)
	}
	addrPort := m.Inputs()[0]
	dataPort := m.Outputs()[0]
	re, err := parseRomFile(e.romDataFile, addrPort.Width, dataPort.Width)
	if err != nil {
		return nil, wrapErr(KindRomDataMissing, Location{Module: name, File: e.romDataFile}, err, "loading ROM data for %q", name)
	}
	e.rom = re
	return re, nil
}

func parseRomFile(path string, addrWidth, dataWidth int) (*romEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	re := &romEntry{addrWidth: addrWidth, dataWidth: dataWidth, values: map[uint64]uint64{}}
	nextAddr := uint64(0)
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		var addr uint64
		var bits string
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			addrStr := strings.TrimSpace(line[:idx])
			a, err := strconv.ParseUint(addrStr, 0, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: invalid address %q", lineNo, addrStr)
			}
			addr = a
			bits = strings.TrimSpace(line[idx+1:])
		} else {
			addr = nextAddr
			bits = line
		}
		v, err := strconv.ParseUint(bits, 2, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid binary literal %q", lineNo, bits)
		}
		re.values[addr] = v
		nextAddr = addr + 1
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return re, nil
}

// Read returns the data word at addr, zero if unlisted (§6).
func (r *romEntry) Read(addr uint64) Value {
	return NewValue(r.dataWidth, r.values[addr])
}

// GateCount returns the recursive primitive-gate ("NAND cost") count for
// the named module, memoized per module in the cache (§4.5). A module
// named nand_gate contributes 1; any other module contributes the sum of
// its children's costs; a leaf that is not nand_gate contributes 0. A
// cycle in the instance graph yields 0 for the cycle (§4.5).
func (c *Cache) GateCount(name, referrerDir string) (int, error) {
	m, err := c.Resolve(name, referrerDir)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(mustAbs(referrerDir, name))
	return c.gateCountLocked(m, dir)
}

func mustAbs(dir, name string) string {
	p, err := filepath.Abs(filepath.Join(dir, name+".sv"))
	if err != nil {
		return filepath.Join(dir, name+".sv")
	}
	return p
}

func (c *Cache) gateCountLocked(m *Module, dir string) (int, error) {
	c.mu.Lock()
	key := cacheKey(mustAbs(dir, m.Name), m.Name)
	e, ok := c.byKey[key]
	c.mu.Unlock()
	if !ok {
		// module resolved from a different referrer directory than its
		// own file lives in (child instance case): recompute the key by
		// scanning byPath for this exact *Module pointer.
		e = c.findEntryFor(m)
	}
	if e == nil {
		return 0, newErr(KindModuleNotFound, Location{Module: m.Name}, "internal: no cache entry for module %q", m.Name)
	}

	c.mu.Lock()
	if e.gateCostSet {
		cost, err := e.gateCost, e.gateCostErr
		c.mu.Unlock()
		return cost, err
	}
	if e.inProgress {
		c.mu.Unlock()
		return 0, nil // cycle: report 0 for the cycle, out-of-band (§4.5)
	}
	e.inProgress = true
	c.mu.Unlock()

	total := 0
	if m.Name == "nand_gate" && len(m.Instances) == 0 {
		total = 1
	} else {
		childDir := filepath.Dir(e.absPath)
		for _, inst := range m.Instances {
			child, err := c.Resolve(inst.ModuleName, childDir)
			if err != nil {
				c.mu.Lock()
				e.inProgress = false
				c.mu.Unlock()
				return 0, err
			}
			cost, err := c.gateCountLocked(child, childDir)
			if err != nil {
				c.mu.Lock()
				e.inProgress = false
				c.mu.Unlock()
				return 0, err
			}
			total += cost
		}
	}

	c.mu.Lock()
	e.inProgress = false
	e.gateCostSet = true
	e.gateCost = total
	c.mu.Unlock()
	return total, nil
}

func (c *Cache) findEntryFor(m *Module) *cacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.byKey {
		if e.module == m {
			return e
		}
	}
	return nil
}

// romInfo reports whether the already-resolved module m is a ROM
// primitive, and returns the path of its located data file ("" if none).
func (c *Cache) romInfo(m *Module) (isRom bool, dataFile string) {
	e := c.findEntryFor(m)
	if e == nil {
		return false, ""
	}
	return e.isRom, e.romDataFile
}
