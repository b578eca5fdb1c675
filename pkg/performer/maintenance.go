package performer

import (
	"context"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
)

// CheckConsistency asks every storage of the tree to repair dangling
// references.
func (s *Service) CheckConsistency(ctx context.Context, session *folder.Session, treeID string) error {
	_, err := s.run(ctx, "check_consistency", session, true, func(o *operation) error {
		if _, err := o.tree(treeID); err != nil {
			return err
		}
		for _, st := range o.svc.registry.AllStorages(treeID) {
			if err := o.open(st); err != nil {
				return err
			}
			if err := st.CheckConsistency(o.ctx, treeID, o.params); err != nil {
				return err
			}
			logger.Debug("Storage %s consistent in tree %s", st.Name(), treeID)
		}
		return nil
	})
	return err
}

// Restore restores trashed folders and returns, per folder id, the parent it
// was restored into. Folders whose original parent is gone are restored
// below defaultDestination.
func (s *Service) Restore(ctx context.Context, session *folder.Session, treeID string, folderIDs []string, defaultDestination string) (map[string]string, error) {
	restored := make(map[string]string)
	_, err := s.run(ctx, "restore", session, true, func(o *operation) error {
		if _, err := o.tree(treeID); err != nil {
			return err
		}
		if len(folderIDs) == 0 {
			return nil
		}

		for _, id := range folderIDs {
			if _, _, _, err := o.loadVisible(treeID, id); err != nil {
				return err
			}
		}

		for _, p := range o.partitionIDs(treeID, folderIDs) {
			ra, ok := p.storage.(folder.RestoreAware)
			if !ok {
				return folder.NewError(folder.ErrUnsupportedOperation, treeID, p.ids[0], "storage %s cannot restore folders", p.storage.Name())
			}
			if err := o.open(p.storage); err != nil {
				return err
			}
			parents, err := ra.RestoreFromTrash(o.ctx, treeID, p.ids, defaultDestination, o.params)
			if err != nil {
				return err
			}
			for id, parent := range parents {
				restored[id] = parent
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}
