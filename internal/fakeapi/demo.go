package fakeapi

import "github.com/iudanet/ctfclient/internal/models"

// DemoCatalog returns a small catalog covering every built-in challenge type
func DemoCatalog() (models.Catalog, map[int64]string) {
	catalog := models.Catalog{
		{
			ID:          1,
			Name:        "web",
			Description: "Break things that talk HTTP.",
			Challenges: []models.Challenge{
				{
					ID:          101,
					Name:        "Login bypass",
					Description: "The admin panel trusts a little too much.",
					Author:      "ractf",
					Score:       100,
					Unlocked:    true,
					Hints: []models.Hint{
						{ID: 1, Name: "Quotes", Text: "What does a single quote do?", Penalty: 10},
					},
				},
				{
					ID:          102,
					Name:        "Cookie jar",
					Type:        "freeform",
					Description: "Any answer is accepted by the form, only one is right.",
					Author:      "ractf",
					Score:       150,
					Unlocked:    true,
				},
			},
		},
		{
			ID:          2,
			Name:        "misc",
			Description: "Everything else.",
			Challenges: []models.Challenge{
				{
					ID:          201,
					Name:        "Sandbox",
					Type:        "code",
					Description: "Print the flag without importing anything.",
					Author:      "ractf",
					Score:       250,
					Unlocked:    true,
					Metadata: map[string]any{
						"runtime": "python3",
						"timeout": 5,
					},
					Files: []models.File{
						{ID: 1, Name: "sandbox.py", URL: "/files/sandbox.py", Size: 512},
					},
				},
				{
					ID:          202,
					Name:        "Locked vault",
					Description: "Opens after Sandbox.",
					Score:       500,
				},
			},
		},
	}

	flags := map[int64]string{
		101: "ractf{0r_1=1}",
		102: "ractf{m0nst3r}",
		201: "ractf{n0_1mp0rts}",
		202: "ractf{v4ult}",
	}
	return catalog, flags
}
