package mail

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/utf7"
)

// IDPrefix starts every mail folder id.
const IDPrefix = "default"

// AccountRootID returns the id of the root folder of a mail account.
func AccountRootID(account int) string {
	return fmt.Sprintf("%s%d", IDPrefix, account)
}

// FolderID builds the id of a mailbox: the account root followed by the
// modified UTF-7 full name ("default0/INBOX/Entw&APw-rfe").
func FolderID(account int, fullName string) (string, error) {
	encoded, err := utf7.Encoding.NewEncoder().String(imap.CanonicalMailboxName(fullName))
	if err != nil {
		return "", fmt.Errorf("encode mailbox name %q: %w", fullName, err)
	}
	return AccountRootID(account) + "/" + encoded, nil
}

// ParseFolderID splits a mail folder id into account and decoded full name.
// The account root has an empty full name.
func ParseFolderID(id string) (account int, fullName string, err error) {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return 0, "", fmt.Errorf("not a mail folder id: %q", id)
	}
	accountPart, encoded, _ := strings.Cut(rest, "/")
	account, err = strconv.Atoi(accountPart)
	if err != nil || account < 0 {
		return 0, "", fmt.Errorf("invalid mail account in %q", id)
	}
	if encoded == "" {
		return account, "", nil
	}
	fullName, err = utf7.Encoding.NewDecoder().String(encoded)
	if err != nil {
		return 0, "", fmt.Errorf("decode mailbox name %q: %w", encoded, err)
	}
	return account, imap.CanonicalMailboxName(fullName), nil
}

// canonicalName upper-cases a leading INBOX hierarchy level.
func canonicalName(fullName, delimiter string) string {
	first, rest, found := strings.Cut(fullName, delimiter)
	first = imap.CanonicalMailboxName(first)
	if !found {
		return first
	}
	return first + delimiter + rest
}

// parentName returns the full name of the parent mailbox ("" for top level).
func parentName(fullName, delimiter string) string {
	i := strings.LastIndex(fullName, delimiter)
	if i < 0 {
		return ""
	}
	return fullName[:i]
}

// leafName returns the last hierarchy level of a full name.
func leafName(fullName, delimiter string) string {
	i := strings.LastIndex(fullName, delimiter)
	if i < 0 {
		return fullName
	}
	return fullName[i+len(delimiter):]
}

func join(parent, name, delimiter string) string {
	if parent == "" {
		return imap.CanonicalMailboxName(name)
	}
	return parent + delimiter + name
}

// within reports whether fullName equals ancestor or lies below it.
func within(fullName, ancestor, delimiter string) bool {
	return fullName == ancestor || strings.HasPrefix(fullName, ancestor+delimiter)
}
