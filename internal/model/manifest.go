package model

import "fmt"

const (
	// DefaultFilename is the conventional name of a SentencePiece model in a
	// Hugging Face repository.
	DefaultFilename = "tokenizer.model"
	// DefaultRevision is used for repositories without a pinned manifest.
	DefaultRevision = "main"
)

type Manifest struct {
	Repo  string      `json:"repo"`
	Files []ModelFile `json:"files"`
}

type ModelFile struct {
	Filename string `json:"filename"`
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

// PinnedManifest returns the known-good tokenizer files for repo.
//
// The only pinned repo is kyutai/pocket-tts-without-voice-cloning. Its
// tokenizer.model is a standalone 4000-piece unigram SentencePiece model, and
// the download is fetched by that file name alone at a fixed revision, so
// none of the repo's other weights are pulled.
func PinnedManifest(repo string) (Manifest, error) {
	switch repo {
	case "kyutai/pocket-tts-without-voice-cloning":
		return Manifest{
			Repo: repo,
			Files: []ModelFile{
				{
					Filename: DefaultFilename,
					Revision: "d4fdd22ae8c8e1cb3634e150ebeff1dab2d16df3",
					SHA256:   "d461765ae179566678c93091c5fa6f2984c31bbe990bf1aa62d92c64d91bc3f6",
				},
			},
		}, nil
	default:
		return Manifest{}, fmt.Errorf("no pinned manifest for repo %q", repo)
	}
}

// ResolveManifest returns the pinned manifest for repo, or an unpinned one
// fetching filename at revision when repo has none.
func ResolveManifest(repo, filename, revision string) Manifest {
	if m, err := PinnedManifest(repo); err == nil && filename == "" && revision == "" {
		return m
	}

	if filename == "" {
		filename = DefaultFilename
	}

	if revision == "" {
		revision = DefaultRevision
	}

	return Manifest{
		Repo:  repo,
		Files: []ModelFile{{Filename: filename, Revision: revision}},
	}
}
