package email

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
)

// itemID is the durable id of a message: the mailbox, its UIDVALIDITY
// and the message UID. It renders as "<uidvalidity>:<uid>:<mailbox>".
type itemID struct {
	UIDValidity uint32
	UID         imap.UID
	Mailbox     string
}

func (id itemID) String() string {
	return fmt.Sprintf("%d:%d:%s", id.UIDValidity, id.UID, id.Mailbox)
}

// parseItemID reverses itemID.String. Mailbox names may contain ':'.
func parseItemID(s string) (itemID, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return itemID{}, fmt.Errorf("malformed message id %q", s)
	}
	validity, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return itemID{}, fmt.Errorf("malformed uidvalidity in %q: %w", s, err)
	}
	uid, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil || uid == 0 {
		return itemID{}, fmt.Errorf("malformed uid in %q", s)
	}
	return itemID{
		UIDValidity: uint32(validity),
		UID:         imap.UID(uid),
		Mailbox:     parts[2],
	}, nil
}

// mailboxInfo is one LIST entry.
type mailboxInfo struct {
	Name  string
	Delim rune
	Attrs []imap.MailboxAttr
}

// DisplayName is the last hierarchy segment, with INBOX shown as Inbox.
func (m mailboxInfo) DisplayName() string {
	if isInbox(m.Name) {
		return "Inbox"
	}
	if m.Delim == 0 {
		return m.Name
	}
	if i := strings.LastIndex(m.Name, string(m.Delim)); i >= 0 {
		return m.Name[i+1:]
	}
	return m.Name
}

func (m mailboxInfo) hasAttr(attr imap.MailboxAttr) bool {
	for _, a := range m.Attrs {
		if strings.EqualFold(string(a), string(attr)) {
			return true
		}
	}
	return false
}

// selectable reports whether the mailbox can hold messages.
func (m mailboxInfo) selectable() bool {
	return !m.hasAttr(imap.MailboxAttrNoSelect) && !m.hasAttr(imap.MailboxAttrNonExistent)
}

// mailboxTree indexes a LIST result by hierarchy.
type mailboxTree struct {
	byName   map[string]mailboxInfo
	children map[string][]string
	roots    []string
}

func newMailboxTree(list []mailboxInfo) *mailboxTree {
	t := &mailboxTree{
		byName:   make(map[string]mailboxInfo, len(list)),
		children: make(map[string][]string),
	}
	for _, m := range list {
		t.byName[m.Name] = m
	}

	for _, m := range list {
		parent := t.parentOf(m)
		if parent == "" {
			t.roots = append(t.roots, m.Name)
			continue
		}
		t.children[parent] = append(t.children[parent], m.Name)
	}

	// INBOX first, then by name.
	less := func(names []string) func(i, j int) bool {
		return func(i, j int) bool {
			a, b := names[i], names[j]
			if isInbox(a) != isInbox(b) {
				return isInbox(a)
			}
			return a < b
		}
	}
	sort.Slice(t.roots, less(t.roots))
	for k, names := range t.children {
		sort.Slice(names, less(names))
		t.children[k] = names
	}
	return t
}

// parentOf returns the nearest listed ancestor of m, or "" for a root.
func (t *mailboxTree) parentOf(m mailboxInfo) string {
	if m.Delim == 0 {
		return ""
	}
	name := m.Name
	for {
		i := strings.LastIndex(name, string(m.Delim))
		if i <= 0 {
			return ""
		}
		name = name[:i]
		if _, ok := t.byName[name]; ok {
			return name
		}
	}
}

func (t *mailboxTree) rootInfos() []mailboxInfo {
	return t.infos(t.roots)
}

func (t *mailboxTree) childInfos(name string) []mailboxInfo {
	return t.infos(t.children[name])
}

func (t *mailboxTree) infos(names []string) []mailboxInfo {
	out := make([]mailboxInfo, 0, len(names))
	for _, n := range names {
		out = append(out, t.byName[n])
	}
	return out
}

// withAttr returns the first mailbox carrying the SPECIAL-USE attr.
func (t *mailboxTree) withAttr(attr imap.MailboxAttr) (mailboxInfo, bool) {
	for _, name := range t.sortedNames() {
		if m := t.byName[name]; m.hasAttr(attr) {
			return m, true
		}
	}
	return mailboxInfo{}, false
}

// named finds a mailbox by full name, case-insensitively.
func (t *mailboxTree) named(name string) (mailboxInfo, bool) {
	if m, ok := t.byName[name]; ok {
		return m, true
	}
	for _, n := range t.sortedNames() {
		if strings.EqualFold(n, name) {
			return t.byName[n], true
		}
	}
	return mailboxInfo{}, false
}

func (t *mailboxTree) sortedNames() []string {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func isInbox(name string) bool {
	return strings.EqualFold(name, "INBOX")
}
