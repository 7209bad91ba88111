package bplus

// GetValue looks up key and returns its value, or nil if the tree is empty
// or the key is absent.
func (t *BPlusTree) GetValue(key []byte) ([]byte, error) {
	guard, leaf, err := t.findLeafForRead(key)
	if err != nil {
		return nil, nil // empty tree reads as "not found", not an error
	}
	defer guard.Drop()

	idx := binarySearch(leaf.keys, key, t.cmp)
	if idx != -1 {
		return leaf.values[idx], nil
	}
	return nil, nil
}
