package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

// FlagGroupEntry is a named toggle reachable as -<prefix><name> and
// -<prefix>no-<name>, e.g. -Woverflow / -Wno-overflow.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagGroup struct {
	Name      string
	GroupType string
	Flags     []FlagGroupEntry
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	groups     []FlagGroup
	args       []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

// AddFlagGroup registers every entry under both its -<prefix><name> and
// -<prefix>no-<name> spellings and records the group for the help page.
func (f *FlagSet) AddFlagGroup(name, groupType string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
	f.groups = append(f.groups, FlagGroup{Name: name, GroupType: groupType, Flags: entries})
}

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) Parse(arguments []string) error {
	f.args = f.args[:0]
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}
		var err error
		if strings.HasPrefix(arg, "--") {
			err = f.parseFlag(arg[2:], "--", arguments, &i)
		} else {
			err = f.parseShort(arg[1:], arguments, &i)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *FlagSet) parseFlag(body, dashes string, arguments []string, i *int) error {
	name, value, hasValue := strings.Cut(body, "=")
	flag, ok := f.flags[name]
	if !ok {
		return fmt.Errorf("unknown flag: %s%s", dashes, name)
	}
	if hasValue {
		return flag.Value.Set(value)
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: %s%s", dashes, name)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

func (f *FlagSet) parseShort(body string, arguments []string, i *int) error {
	// Group toggles like -Woverflow are registered under their full
	// spelling, so try an exact match before shorthand splitting.
	if name, _, _ := strings.Cut(body, "="); f.flags[name] != nil {
		return f.parseFlag(body, "-", arguments, i)
	}

	shorthand := body[:1]
	flag, ok := f.shorthands[shorthand]
	if !ok {
		return fmt.Errorf("unknown shorthand flag: -%s", shorthand)
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	value := body[1:]
	if value == "" {
		if *i+1 >= len(arguments) {
			return fmt.Errorf("flag needs an argument: -%s", shorthand)
		}
		*i++
		value = arguments[*i]
	}
	return flag.Value.Set(value)
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintf(os.Stderr, "Run '%s --help' for available options.\n", a.Name)
		return err
	}
	if help {
		a.printHelp(os.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) printHelp(w *os.File) {
	var sb strings.Builder
	width := terminalWidth()

	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)
	if a.Description != "" {
		sb.WriteString("\n")
		for _, line := range wrapText(a.Description, width-4) {
			fmt.Fprintf(&sb, "    %s\n", line)
		}
	}

	flags := a.optionFlags()
	left := 0
	for _, fl := range flags {
		if n := len(flagString(fl)); n > left {
			left = n
		}
	}
	for _, g := range a.FlagSet.groups {
		for _, e := range g.Flags {
			if n := len("-" + e.Prefix + "no-" + e.Name); n > left {
				left = n
			}
		}
	}

	sb.WriteString("\nOptions:\n")
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
	for _, fl := range flags {
		writeEntry(&sb, flagString(fl), fl.Usage, left, width)
	}

	for _, g := range a.FlagSet.groups {
		fmt.Fprintf(&sb, "\n%s (-%s<%s>, -%sno-<%s>):\n",
			g.Name, g.Flags[0].Prefix, g.GroupType, g.Flags[0].Prefix, g.GroupType)
		entries := make([]FlagGroupEntry, len(g.Flags))
		copy(entries, g.Flags)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			state := " "
			if e.Enabled != nil && *e.Enabled && (e.Disabled == nil || !*e.Disabled) {
				state = "x"
			}
			writeEntry(&sb, "-"+e.Prefix+e.Name, fmt.Sprintf("[%s] %s", state, e.Usage), left, width)
		}
	}
	fmt.Fprint(w, sb.String())
}

func (a *App) optionFlags() []*Flag {
	grouped := make(map[string]bool)
	for _, g := range a.FlagSet.groups {
		for _, e := range g.Flags {
			grouped[e.Prefix+e.Name] = true
			grouped[e.Prefix+"no-"+e.Name] = true
		}
	}
	var flags []*Flag
	for name, fl := range a.FlagSet.flags {
		if !grouped[name] {
			flags = append(flags, fl)
		}
	}
	return flags
}

func flagString(fl *Flag) string {
	var sb strings.Builder
	_, isBool := fl.Value.(*boolValue)
	if fl.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", fl.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", fl.Name)
	if !isBool && fl.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", fl.ExpectedType)
	}
	return sb.String()
}

func writeEntry(sb *strings.Builder, left, usage string, leftWidth, termWidth int) {
	avail := termWidth - leftWidth - 6
	if avail < 10 {
		avail = 10
	}
	lines := wrapText(usage, avail)
	if len(lines) == 0 {
		lines = []string{""}
	}
	fmt.Fprintf(sb, "    %-*s  %s\n", leftWidth, left, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(sb, "    %-*s  %s\n", leftWidth, "", line)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 20 {
		return 80
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var cur strings.Builder
	for _, word := range words {
		if cur.Len() > 0 && cur.Len()+1+len(word) > maxWidth {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
