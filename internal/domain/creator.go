package domain

// CreatorProfile represents launch history of a token creator.
// Corresponds to creator_profiles table in PostgreSQL.
type CreatorProfile struct {
	Address          string   // PRIMARY KEY, base58 creator address
	TokensLaunched   int      // prior launches observed
	Rugs             int      // launches that collapsed (liquidity pulled or -95% within a day)
	RugRatio         float64  // rugs / launches [0,1]
	AvgLifespanHours *float64 // mean hours from launch to collapse or now (nullable)
	UpdatedAt        int64    // last refresh timestamp (ms)
}

// CreatorStatsPatch is a partial update applied to a creator profile.
// Nil fields keep their stored value; LaunchDelta increments the launch
// counter atomically so concurrent create events never lose a count.
type CreatorStatsPatch struct {
	RugRatio         *float64
	AvgLifespanHours *float64
	LaunchDelta      int
}

// Risk collapses the profile into a [0,1] score used by the confidence
// gate. Unknown history (no launches observed) returns 0.5.
func (p *CreatorProfile) Risk() float64 {
	if p == nil || p.TokensLaunched == 0 {
		return 0.5
	}
	risk := p.RugRatio
	if p.AvgLifespanHours != nil && *p.AvgLifespanHours < 24 {
		risk += 0.2
	}
	if p.TokensLaunched > 10 {
		risk += 0.1
	}
	if risk > 1 {
		risk = 1
	}
	if risk < 0 {
		risk = 0
	}
	return risk
}
