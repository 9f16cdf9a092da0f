package profile

// Title is one row of the title table: the title held from XPRequired onwards.
type Title struct {
	Level      int    `yaml:"level"`
	Title      string `yaml:"title"`
	XPRequired int64  `yaml:"xp_required"`
	AvatarTier int    `yaml:"avatar_tier"`
}

// Titles is ordered by XPRequired ascending and starts at zero XP.
var Titles = []Title{
	{Level: 1, Title: "Terminal Initiate", XPRequired: 0, AvatarTier: 1},
	{Level: 5, Title: "Prompt Apprentice", XPRequired: 500, AvatarTier: 1},
	{Level: 10, Title: "Repo Architect", XPRequired: 2000, AvatarTier: 2},
	{Level: 15, Title: "Pipeline Runner", XPRequired: 5000, AvatarTier: 2},
	{Level: 20, Title: "Context Weaver", XPRequired: 10000, AvatarTier: 3},
	{Level: 25, Title: "Skill Forger", XPRequired: 18000, AvatarTier: 3},
	{Level: 30, Title: "Voice Alchemist", XPRequired: 30000, AvatarTier: 4},
	{Level: 35, Title: "System Sovereign", XPRequired: 50000, AvatarTier: 4},
	{Level: 40, Title: "OS Architect", XPRequired: 80000, AvatarTier: 5},
	{Level: 45, Title: "Cursor Slayer", XPRequired: 120000, AvatarTier: 5},
	{Level: 50, Title: "Grand Master Cursor Slayer", XPRequired: 200000, AvatarTier: 6},
}

// Rank is the title, level and avatar tier resolved for an XP total.
type Rank struct {
	Title      string
	Level      int
	AvatarTier int
	// NextXP — XP required for the next title; the total itself at the last title.
	NextXP int64
}

// ResolveRank finds the highest title reached by xp and interpolates the level
// linearly towards the next title. The level never reaches the next title's level
// before its XP does.
func ResolveRank(xp int64) Rank {
	current := Titles[0]
	var next *Title
	for i := range Titles {
		if xp < Titles[i].XPRequired {
			next = &Titles[i]
			break
		}
		current = Titles[i]
	}

	rank := Rank{Title: current.Title, Level: current.Level, AvatarTier: current.AvatarTier}
	if next == nil {
		rank.NextXP = max(xp, 1)
		return rank
	}
	rank.NextXP = next.XPRequired

	xpRange := next.XPRequired - current.XPRequired
	levelRange := next.Level - current.Level
	if xpRange > 0 && levelRange > 0 {
		step := int(float64(xp-current.XPRequired) / float64(xpRange) * float64(levelRange))
		rank.Level = max(current.Level, min(current.Level+step, next.Level-1))
	}
	return rank
}
