// Package mail provides the folder storage of a mail account.
//
// Mail folders follow IMAP naming: mailboxes have hierarchical full names
// separated by a delimiter, INBOX is case-insensitive, and folder ids embed
// the modified UTF-7 full name below the account root ("default0/INBOX").
// The account root itself is placed below the private root of the folder
// tree.
//
// The storage keeps its mailboxes in memory and has no transactions: every
// operation is applied immediately, StartTransaction always reports that no
// transaction was started.
package mail

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
)

// Config contains the mail-specific storage options.
type Config struct {
	// Account is the account number of the storage ("default<n>").
	Account int `mapstructure:"account" validate:"gte=0"`

	// RootName is the display name of the account root.
	// Default: "E-Mail"
	RootName string `mapstructure:"root_name"`

	// Delimiter separates the hierarchy levels of mailbox names.
	// Default: "/"
	Delimiter string `mapstructure:"delimiter"`

	// Mailboxes are created at startup. INBOX and the trash always exist.
	Mailboxes []string `mapstructure:"mailboxes"`

	// TrashName is the full name of the trash mailbox.
	// Default: "INBOX<delimiter>Trash"
	TrashName string `mapstructure:"trash_name"`
}

// Options identifies the storage inside the registry.
type Options struct {
	Name     string
	TreeIDs  []string
	Priority int
}

type mailbox struct {
	info         imap.MailboxInfo
	subscribed   bool
	created      time.Time
	modified     time.Time
	createdBy    int
	modifiedBy   int
	permissions  []folder.Permission
	messageOwner []int
}

// Store implements folder.Storage for one mail account.
//
// Thread Safety:
// All mailbox state is protected by a single read-write mutex.
type Store struct {
	opts Options
	cfg  Config

	mu        sync.RWMutex
	mailboxes map[string]*mailbox
	deleted   map[string]time.Time
}

var (
	_ folder.Storage             = (*Store)(nil)
	_ folder.TrashAware          = (*Store)(nil)
	_ folder.Searchable          = (*Store)(nil)
	_ folder.AccountRootProvider = (*Store)(nil)
)

// New creates a mail storage with INBOX, the trash and cfg.Mailboxes.
func New(opts Options, cfg Config) (*Store, error) {
	if opts.Name == "" {
		return nil, folder.NewError(folder.ErrMissingParameter, "", "", "storage name is required")
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = "/"
	}
	if cfg.RootName == "" {
		cfg.RootName = "E-Mail"
	}
	if cfg.TrashName == "" {
		cfg.TrashName = imap.InboxName + cfg.Delimiter + "Trash"
	}

	s := &Store{
		opts:      opts,
		cfg:       cfg,
		mailboxes: make(map[string]*mailbox),
		deleted:   make(map[string]time.Time),
	}

	now := time.Now().UTC()
	s.ensure(imap.InboxName, now)
	s.ensure(cfg.TrashName, now).info.Attributes = []string{imap.TrashAttr}
	for _, name := range cfg.Mailboxes {
		s.ensure(canonicalName(name, cfg.Delimiter), now)
	}
	return s, nil
}

// ensure creates fullName and its missing ancestors. Callers hold mu or own s.
func (s *Store) ensure(fullName string, now time.Time) *mailbox {
	if mb, ok := s.mailboxes[fullName]; ok {
		return mb
	}
	if parent := parentName(fullName, s.cfg.Delimiter); parent != "" {
		s.ensure(parent, now)
	}
	mb := &mailbox{
		info:       imap.MailboxInfo{Delimiter: s.cfg.Delimiter, Name: fullName},
		subscribed: true,
		created:    now,
		modified:   now,
	}
	s.mailboxes[fullName] = mb
	return mb
}

// Name implements folder.Storage.
func (s *Store) Name() string { return s.opts.Name }

// Scope implements folder.Storage. The storage serves its account ids and
// contributes the account root to the private folder.
func (s *Store) Scope() folder.Scope {
	return folder.Scope{
		TreeIDs:        s.opts.TreeIDs,
		FolderPrefixes: []string{AccountRootID(s.cfg.Account)},
		ParentIDs:      []string{folder.PrivateID},
	}
}

// SupportedContentTypes implements folder.Storage.
func (s *Store) SupportedContentTypes() []folder.ContentType {
	return []folder.ContentType{folder.ContentMail}
}

// DefaultContentType implements folder.Storage.
func (s *Store) DefaultContentType() folder.ContentType { return folder.ContentMail }

// AccountRootID implements folder.AccountRootProvider.
func (s *Store) AccountRootID(string) string { return AccountRootID(s.cfg.Account) }

// StartTransaction implements folder.Storage. Mail accounts have no
// transactions.
func (s *Store) StartTransaction(context.Context, *folder.StorageParameters, bool) (bool, error) {
	return false, nil
}

// CommitTransaction implements folder.Storage.
func (s *Store) CommitTransaction(context.Context, *folder.StorageParameters) error { return nil }

// Rollback implements folder.Storage.
func (s *Store) Rollback(context.Context, *folder.StorageParameters) error { return nil }

// resolve maps a folder id to a mailbox full name ("" for the account root).
func (s *Store) resolve(treeID, id string) (string, error) {
	account, fullName, err := ParseFolderID(id)
	if err != nil || account != s.cfg.Account {
		return "", folder.NotFound(treeID, id)
	}
	return canonicalName(fullName, s.cfg.Delimiter), nil
}

func (s *Store) idOf(fullName string) string {
	if fullName == "" {
		return AccountRootID(s.cfg.Account)
	}
	id, err := FolderID(s.cfg.Account, fullName)
	if err != nil {
		// Full names are decoded from valid ids or validated on creation.
		logger.Warn("Mail storage %s: %v", s.opts.Name, err)
		return AccountRootID(s.cfg.Account) + "/" + fullName
	}
	return id
}

// GetFolder implements folder.Storage.
func (s *Store) GetFolder(_ context.Context, treeID, folderID string, params *folder.StorageParameters) (*folder.Folder, error) {
	fullName, err := s.resolve(treeID, folderID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folderLocked(treeID, fullName, params)
}

func (s *Store) folderLocked(treeID, fullName string, params *folder.StorageParameters) (*folder.Folder, error) {
	owner := params.UserID()
	if fullName == "" {
		return &folder.Folder{
			ID:           AccountRootID(s.cfg.Account),
			TreeID:       treeID,
			ParentID:     folder.PrivateID,
			Name:         s.cfg.RootName,
			ContentType:  folder.ContentMail,
			Type:         folder.TypePrivate,
			CreatedBy:    owner,
			ModifiedBy:   owner,
			SubfolderIDs: s.childIDsLocked(""),
			Subscribed:   true,
			Permissions:  []folder.Permission{folder.OwnerPermission(owner)},
		}, nil
	}

	mb, ok := s.mailboxes[fullName]
	if !ok {
		return nil, folder.NotFound(treeID, s.idOf(fullName))
	}

	createdBy := mb.createdBy
	if createdBy == 0 {
		createdBy = owner
	}
	perms := mb.permissions
	if perms == nil {
		perms = []folder.Permission{folder.OwnerPermission(createdBy)}
	}

	f := &folder.Folder{
		ID:           s.idOf(fullName),
		TreeID:       treeID,
		ParentID:     s.idOf(parentName(fullName, s.cfg.Delimiter)),
		Name:         leafName(fullName, s.cfg.Delimiter),
		ContentType:  folder.ContentMail,
		Type:         folder.TypePrivate,
		CreatedBy:    createdBy,
		ModifiedBy:   mb.modifiedBy,
		CreationDate: mb.created,
		LastModified: mb.modified,
		SubfolderIDs: s.childIDsLocked(fullName),
		Subscribed:   mb.subscribed,
		Permissions:  append([]folder.Permission(nil), perms...),
		Default:      fullName == imap.InboxName,
	}
	f.SubscribedSubfolders = s.hasSubscribedDescendantLocked(fullName)
	if fullName == s.cfg.TrashName {
		f.Type = folder.TypeTrash
	}
	return f, nil
}

// children returns the direct children of fullName, INBOX first, then by name.
func (s *Store) childrenLocked(fullName string) []string {
	var names []string
	for name := range s.mailboxes {
		if parentName(name, s.cfg.Delimiter) == fullName {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == imap.InboxName || names[j] == imap.InboxName {
			return names[i] == imap.InboxName
		}
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

func (s *Store) childIDsLocked(fullName string) []string {
	children := s.childrenLocked(fullName)
	ids := make([]string, 0, len(children))
	for _, c := range children {
		ids = append(ids, s.idOf(c))
	}
	return ids
}

func (s *Store) hasSubscribedDescendantLocked(fullName string) bool {
	for name, mb := range s.mailboxes {
		if name != fullName && within(name, fullName, s.cfg.Delimiter) && mb.subscribed {
			return true
		}
	}
	return false
}

// GetFolders implements folder.Storage.
func (s *Store) GetFolders(ctx context.Context, treeID string, ids []string, params *folder.StorageParameters) ([]*folder.Folder, error) {
	out := make([]*folder.Folder, 0, len(ids))
	for _, id := range ids {
		f, err := s.GetFolder(ctx, treeID, id, params)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// GetSubfolders implements folder.Storage.
func (s *Store) GetSubfolders(_ context.Context, treeID, parentID string, _ *folder.StorageParameters) ([]folder.SortableID, error) {
	if parentID == folder.PrivateID {
		return []folder.SortableID{{
			ID:       AccountRootID(s.cfg.Account),
			Name:     s.cfg.RootName,
			Priority: s.opts.Priority,
		}}, nil
	}

	fullName, err := s.resolve(treeID, parentID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if fullName != "" {
		if _, ok := s.mailboxes[fullName]; !ok {
			return nil, folder.NotFound(treeID, parentID)
		}
	}
	children := s.childrenLocked(fullName)
	out := make([]folder.SortableID, 0, len(children))
	for i, c := range children {
		out = append(out, folder.SortableID{
			ID:       s.idOf(c),
			Name:     leafName(c, s.cfg.Delimiter),
			Priority: s.opts.Priority*1000 + i,
		})
	}
	return out, nil
}

// CreateFolder implements folder.Storage. The new id is written into f.ID.
func (s *Store) CreateFolder(_ context.Context, f *folder.Folder, params *folder.StorageParameters) error {
	if f.ContentType != "" && f.ContentType != folder.ContentMail {
		return folder.NewError(folder.ErrInvalidContentType, f.TreeID, f.ParentID, "mail storage cannot hold %q folders", f.ContentType)
	}
	if f.Name == "" || strings.Contains(f.Name, s.cfg.Delimiter) {
		return folder.NewError(folder.ErrInvalidName, f.TreeID, f.ParentID, "invalid mailbox name %q", f.Name)
	}

	parentFull := ""
	if f.ParentID != folder.PrivateID {
		var err error
		if parentFull, err = s.resolve(f.TreeID, f.ParentID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if parentFull != "" {
		if _, ok := s.mailboxes[parentFull]; !ok {
			return folder.NotFound(f.TreeID, f.ParentID)
		}
	}
	fullName := join(parentFull, f.Name, s.cfg.Delimiter)
	if _, exists := s.mailboxes[fullName]; exists {
		return folder.NewError(folder.ErrEqualName, f.TreeID, f.ParentID, "mailbox %q already exists", fullName)
	}
	if _, err := FolderID(s.cfg.Account, fullName); err != nil {
		return folder.NewError(folder.ErrInvalidName, f.TreeID, f.ParentID, "invalid mailbox name %q", f.Name)
	}

	ts := stamp(params)
	mb := s.ensure(fullName, ts)
	mb.subscribed = f.Subscribed
	mb.createdBy = params.UserID()
	mb.modifiedBy = params.UserID()
	if len(f.Permissions) > 0 {
		mb.permissions = append([]folder.Permission(nil), f.Permissions...)
	}
	s.touchLocked(parentFull, ts)
	delete(s.deleted, fullName)

	f.ID = s.idOf(fullName)
	f.ParentID = s.idOf(parentFull)
	f.ContentType = folder.ContentMail
	f.Type = folder.TypePrivate
	f.CreatedBy = params.UserID()
	f.CreationDate = ts
	f.LastModified = ts
	logger.Debug("Mail storage %s: created mailbox %q", s.opts.Name, fullName)
	return nil
}

// UpdateFolder implements folder.Storage. Renaming or moving a mailbox
// changes its id and the ids of all its descendants; the new id is written
// into f.ID.
func (s *Store) UpdateFolder(_ context.Context, f *folder.Folder, params *folder.StorageParameters) error {
	fullName, err := s.resolve(f.TreeID, f.ID)
	if err != nil {
		return err
	}
	if fullName == "" {
		return folder.NewError(folder.ErrFolderNotMoveable, f.TreeID, f.ID, "account root cannot be changed")
	}
	newParent := parentName(fullName, s.cfg.Delimiter)
	if f.ParentID == folder.PrivateID {
		newParent = ""
	} else if f.ParentID != "" {
		if newParent, err = s.resolve(f.TreeID, f.ParentID); err != nil {
			return err
		}
	}
	name := f.Name
	if name == "" {
		name = leafName(fullName, s.cfg.Delimiter)
	}
	if strings.Contains(name, s.cfg.Delimiter) {
		return folder.NewError(folder.ErrInvalidName, f.TreeID, f.ID, "invalid mailbox name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mb, ok := s.mailboxes[fullName]
	if !ok {
		return folder.NotFound(f.TreeID, f.ID)
	}

	ts := stamp(params)
	target := join(newParent, name, s.cfg.Delimiter)
	if target != fullName {
		if fullName == imap.InboxName || fullName == s.cfg.TrashName {
			return folder.NewError(folder.ErrFolderNotMoveable, f.TreeID, f.ID, "mailbox %q cannot be renamed", fullName)
		}
		if newParent != "" {
			if _, ok := s.mailboxes[newParent]; !ok {
				return folder.NotFound(f.TreeID, f.ParentID)
			}
		}
		if within(newParent, fullName, s.cfg.Delimiter) {
			return folder.NewError(folder.ErrMoveNotPermitted, f.TreeID, f.ID, "cannot move a mailbox below itself")
		}
		if _, exists := s.mailboxes[target]; exists {
			return folder.NewError(folder.ErrEqualName, f.TreeID, f.ParentID, "mailbox %q already exists", target)
		}
		s.renameLocked(fullName, target, ts)
		s.touchLocked(parentName(fullName, s.cfg.Delimiter), ts)
		s.touchLocked(newParent, ts)
		fullName = target
	}

	mb.subscribed = f.Subscribed
	if f.Permissions != nil {
		mb.permissions = append([]folder.Permission(nil), f.Permissions...)
	}
	mb.modified = ts
	mb.modifiedBy = params.UserID()

	f.ID = s.idOf(fullName)
	f.ParentID = s.idOf(newParent)
	f.Name = name
	return nil
}

// renameLocked moves a mailbox and its descendants to a new full name.
func (s *Store) renameLocked(from, to string, ts time.Time) {
	var subtree []string
	for name := range s.mailboxes {
		if within(name, from, s.cfg.Delimiter) {
			subtree = append(subtree, name)
		}
	}
	for _, name := range subtree {
		mb := s.mailboxes[name]
		renamed := to + strings.TrimPrefix(name, from)
		delete(s.mailboxes, name)
		s.deleted[name] = ts
		mb.info.Name = renamed
		mb.modified = ts
		s.mailboxes[renamed] = mb
		delete(s.deleted, renamed)
	}
}

func (s *Store) touchLocked(fullName string, ts time.Time) {
	if mb, ok := s.mailboxes[fullName]; ok {
		mb.modified = ts
	}
}

// DeleteFolder implements folder.Storage.
func (s *Store) DeleteFolder(_ context.Context, treeID, folderID string, params *folder.StorageParameters) error {
	fullName, err := s.resolve(treeID, folderID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(treeID, fullName, stamp(params))
}

func (s *Store) deleteLocked(treeID, fullName string, ts time.Time) error {
	id := s.idOf(fullName)
	if fullName == "" || fullName == imap.InboxName || fullName == s.cfg.TrashName {
		return folder.NewError(folder.ErrFolderNotDeleteable, treeID, id, "mailbox cannot be deleted")
	}
	if _, ok := s.mailboxes[fullName]; !ok {
		return folder.NotFound(treeID, id)
	}
	if len(s.childrenLocked(fullName)) > 0 {
		return folder.NewError(folder.ErrFolderNotDeleteable, treeID, id, "mailbox has subfolders")
	}
	delete(s.mailboxes, fullName)
	s.deleted[fullName] = ts
	s.touchLocked(parentName(fullName, s.cfg.Delimiter), ts)
	return nil
}

// TrashFolder implements folder.TrashAware. A mailbox is moved below the
// trash, renamed "Name 2", "Name 3"... on conflict. Mailboxes already in
// the trash are deleted with their descendants.
func (s *Store) TrashFolder(_ context.Context, treeID, folderID string, params *folder.StorageParameters) error {
	fullName, err := s.resolve(treeID, folderID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mailboxes[fullName]; !ok {
		return folder.NotFound(treeID, folderID)
	}
	if fullName == imap.InboxName || fullName == s.cfg.TrashName {
		return folder.NewError(folder.ErrFolderNotDeleteable, treeID, folderID, "mailbox cannot be trashed")
	}

	ts := stamp(params)
	if within(fullName, s.cfg.TrashName, s.cfg.Delimiter) {
		var subtree []string
		for name := range s.mailboxes {
			if within(name, fullName, s.cfg.Delimiter) {
				subtree = append(subtree, name)
			}
		}
		// Deepest first.
		sort.Slice(subtree, func(i, j int) bool { return len(subtree[i]) > len(subtree[j]) })
		for _, name := range subtree {
			if err := s.deleteLocked(treeID, name, ts); err != nil {
				return err
			}
		}
		return nil
	}

	leaf := leafName(fullName, s.cfg.Delimiter)
	target := join(s.cfg.TrashName, leaf, s.cfg.Delimiter)
	for n := 2; ; n++ {
		if _, exists := s.mailboxes[target]; !exists {
			break
		}
		target = join(s.cfg.TrashName, folder.RenameSpaced.Apply(leaf, n), s.cfg.Delimiter)
	}
	s.renameLocked(fullName, target, ts)
	s.touchLocked(parentName(fullName, s.cfg.Delimiter), ts)
	s.touchLocked(s.cfg.TrashName, ts)
	return nil
}

// ClearFolder implements folder.Storage.
func (s *Store) ClearFolder(_ context.Context, treeID, folderID string, params *folder.StorageParameters) error {
	fullName, err := s.resolve(treeID, folderID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mb, ok := s.mailboxes[fullName]
	if !ok {
		return folder.NotFound(treeID, folderID)
	}
	mb.messageOwner = nil
	mb.modified = stamp(params)
	return nil
}

// CheckConsistency implements folder.Storage. Mailbox hierarchies cannot
// dangle.
func (s *Store) CheckConsistency(context.Context, string, *folder.StorageParameters) error {
	return nil
}

// ContainsFolder implements folder.Storage.
func (s *Store) ContainsFolder(_ context.Context, treeID, folderID string, kind folder.StorageKind, _ *folder.StorageParameters) (bool, error) {
	fullName, err := s.resolve(treeID, folderID)
	if err != nil {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if kind == folder.KindBackup {
		_, ok := s.deleted[fullName]
		return ok, nil
	}
	if fullName == "" {
		return true, nil
	}
	_, ok := s.mailboxes[fullName]
	return ok, nil
}

// IsEmpty implements folder.Storage.
func (s *Store) IsEmpty(_ context.Context, treeID, folderID string, _ *folder.StorageParameters) (bool, error) {
	mb, err := s.lookup(treeID, folderID)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(mb.messageOwner) == 0, nil
}

// ContainsForeignObjects implements folder.Storage.
func (s *Store) ContainsForeignObjects(_ context.Context, treeID, folderID string, params *folder.StorageParameters) (bool, error) {
	mb, err := s.lookup(treeID, folderID)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, owner := range mb.messageOwner {
		if owner != params.UserID() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) lookup(treeID, folderID string) (*mailbox, error) {
	fullName, err := s.resolve(treeID, folderID)
	if err != nil {
		return nil, err
	}
	if fullName == "" {
		return &mailbox{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	mb, ok := s.mailboxes[fullName]
	if !ok {
		return nil, folder.NotFound(treeID, folderID)
	}
	return mb, nil
}

// DefaultFolderID implements folder.Storage. INBOX is the default mail folder.
func (s *Store) DefaultFolderID(_ context.Context, treeID string, ct folder.ContentType, typ folder.Type, _ *folder.StorageParameters) (string, error) {
	if ct != folder.ContentMail || (typ != "" && typ != folder.TypePrivate) {
		return "", folder.NewError(folder.ErrNoDefaultFolder, treeID, "", "no default %s folder of type %q", ct, typ)
	}
	return s.idOf(imap.InboxName), nil
}

// ModifiedFolderIDs implements folder.Storage.
func (s *Store) ModifiedFolderIDs(_ context.Context, _ string, since time.Time, contentTypes []folder.ContentType, _ *folder.StorageParameters) ([]string, error) {
	if len(contentTypes) > 0 && !containsType(contentTypes, folder.ContentMail) {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for name, mb := range s.mailboxes {
		if mb.modified.After(since) {
			ids = append(ids, s.idOf(name))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeletedFolderIDs implements folder.Storage.
func (s *Store) DeletedFolderIDs(_ context.Context, _ string, since time.Time, _ *folder.StorageParameters) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for name, at := range s.deleted {
		if at.After(since) {
			ids = append(ids, s.idOf(name))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// UpdateLastModified implements folder.Storage.
func (s *Store) UpdateLastModified(_ context.Context, lastModified time.Time, treeID, folderID string, _ *folder.StorageParameters) error {
	fullName, err := s.resolve(treeID, folderID)
	if err != nil {
		return err
	}
	if fullName == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mb, ok := s.mailboxes[fullName]
	if !ok {
		return folder.NotFound(treeID, folderID)
	}
	mb.modified = lastModified
	return nil
}

// SearchByName implements folder.Searchable.
func (s *Store) SearchByName(_ context.Context, treeID, rootID, query string, date time.Time, includeSubfolders bool, params *folder.StorageParameters) ([]*folder.Folder, error) {
	root := ""
	if rootID != "" && rootID != folder.PrivateID {
		var err error
		if root, err = s.resolve(treeID, rootID); err != nil {
			return nil, err
		}
	}
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*folder.Folder
	for name, mb := range s.mailboxes {
		if root != "" && !within(name, root, s.cfg.Delimiter) || name == root {
			continue
		}
		if !includeSubfolders && parentName(name, s.cfg.Delimiter) != root {
			continue
		}
		if !strings.Contains(strings.ToLower(leafName(name, s.cfg.Delimiter)), needle) {
			continue
		}
		if !date.IsZero() && mb.modified.Before(date) {
			continue
		}
		f, err := s.folderLocked(treeID, name, params)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddMessage records a message created by createdBy in a mailbox.
func (s *Store) AddMessage(treeID, folderID string, createdBy int) error {
	mb, err := s.lookup(treeID, folderID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mb.messageOwner = append(mb.messageOwner, createdBy)
	return nil
}

// Mailboxes returns the IMAP information of every mailbox, sorted by name.
func (s *Store) Mailboxes() []imap.MailboxInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]imap.MailboxInfo, 0, len(s.mailboxes))
	for _, mb := range s.mailboxes {
		info := mb.info
		if len(s.childrenLocked(mb.info.Name)) > 0 {
			info.Attributes = append(append([]string(nil), info.Attributes...), imap.HasChildrenAttr)
		} else {
			info.Attributes = append(append([]string(nil), info.Attributes...), imap.HasNoChildrenAttr)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func stamp(params *folder.StorageParameters) time.Time {
	if t := params.Timestamp(); !t.IsZero() {
		return t
	}
	return time.Now().UTC()
}

func containsType(types []folder.ContentType, ct folder.ContentType) bool {
	for _, t := range types {
		if t == ct {
			return true
		}
	}
	return false
}
