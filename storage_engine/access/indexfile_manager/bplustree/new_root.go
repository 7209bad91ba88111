package bplus

import "fmt"

// createNewRoot is reached when leftID had no parent in ctx — it was the
// tree's root and just split. ctx.header is still held (it was never
// releasable while the root itself could change), so writing the new root
// id into it here is race-free against any other writer.
func (t *BPlusTree) createNewRoot(ctx *writeCrabContext, leftID int64, promoteKey []byte, rightID int64) error {
	defer ctx.releaseAll(t)

	rootGuard, root, err := t.allocNode(NodeInternal)
	if err != nil {
		return fmt.Errorf("createNewRoot: failed to allocate new root: %w", err)
	}
	defer rootGuard.Drop()

	root.keys = append(root.keys, promoteKey)
	root.children = append(root.children, leftID, rightID)

	if err := storeNode(rootGuard.Page(), root); err != nil {
		return fmt.Errorf("createNewRoot: %w", err)
	}

	encodeHeaderRoot(ctx.header.Page(), root.pageID)
	return nil
}
