// Package stitch implements the chunk stitcher of spec §4.6: it
// flattens a compiled chunk's snippets into one seamless instruction
// stream and resolves every snippet-index Label into an absolute
// instruction index the VM can jump to directly.
package stitch

import "github.com/ember-lang/ember/internal/bytecode"

// Chunk flattens one chunk's snippets into Seamless, in two passes:
// first assigning every snippet's label its final absolute instruction
// index (the position its first instruction will occupy in Seamless),
// then rewriting every label-carrying instruction to instead carry a
// jump-payload index into Chunk.Jumps holding that absolute target.
// After this call, Label fields on the chunk's instructions are stale
// and must not be consulted; only the jump-payload Arg matters.
func Chunk(chunk *bytecode.Chunk) {
	chunk.Seamless = chunk.Seamless[:0]
	for _, snip := range chunk.Snippets {
		snip.Label.Bind(len(chunk.Seamless))
		chunk.Seamless = append(chunk.Seamless, snip.Instructions...)
	}

	for i := range chunk.Seamless {
		ins := &chunk.Seamless[i]
		if ins.Label == nil {
			continue
		}
		idx := chunk.AddJump()
		chunk.Jumps[idx] = int32(ins.Label.Target)
		ins.Arg = idx
		ins.Label = nil
	}
}

// All stitches every chunk in a pool independently — each chunk's
// snippets and labels are self-contained, so chunk order doesn't
// matter here (fun/box/lambda bodies only ever reference each other
// indirectly, via FunctionPayload.ChunkRef, never via a cross-chunk
// Label).
func All(chunks []*bytecode.Chunk) {
	for _, chunk := range chunks {
		Chunk(chunk)
	}
}
