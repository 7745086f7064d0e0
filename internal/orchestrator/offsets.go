package orchestrator

import "github.com/ember-lang/ember/internal/bytecode"

// rewriteChunkRefs shifts every FunctionPayload.ChunkRef, GivenChunkRefs
// and FieldInit entry in chunks by base, translating a unit's own
// chunk-local indices (0-based, as internal/compiler.Compile emits
// them — see bytecode.FunctionPayload's doc comment) into indices valid
// in the orchestrator's shared pool, where these chunks are about to
// land starting at position base.
func rewriteChunkRefs(chunks []*bytecode.Chunk, base int32) {
	for _, chunk := range chunks {
		for i := range chunk.Functions {
			fp := &chunk.Functions[i]
			fp.ChunkRef += base
			for j, ref := range fp.GivenChunkRefs {
				if ref < 0 {
					continue
				}
				fp.GivenChunkRefs[j] = ref + base
			}
			for j := range fp.FieldInit {
				fp.FieldInit[j] += base
			}
		}
	}
}
