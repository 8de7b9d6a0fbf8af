package deck

// MissionGenesis returns the fourteen pitch slides in presentation order.
func MissionGenesis() []Slide {
	return []Slide{
		{
			Name:  "Commencement",
			Title: "GENESIS // Team S.C.A.A.M",
			Body: `MISSION_AUTHORIZED

"Memorizing formulas won't improve our economy. Real learning happens when students can think, create, and act."

E-LAB FINAL PRESENTATION // 2025`,
		},
		{
			Name:  "Threat Intel",
			Title: "Problem Statement",
			Body: `According to World Bank data (CEIC 2023) and UNESCO (2024), about 30% of Cameroon's young people are not prepared for success in higher education.

Every year, over 2 million secondary school students graduate from a system heavily focused on rote memorization, lacking essential problem-solving skills.

SYSTEMIC_FAILURE   30%    Total unpreparedness rate in youth demographic.
VOLUME_IMPACT      2M+    Students trapped in memorization-heavy cycles annually.`,
		},
		{
			Name:  "Research Output",
			Title: "Research Insights",
			Body: `Identified roadblocks (survey mentions):
  Poor CBA Implementation   40
  Lack of Materials         10
  Limited Practicals         5

Survey results: based on a primary survey with 55 students and 3 teachers, 85% report that copying notes is the primary activity.`,
		},
		{
			Name:  "Core Strategy",
			Title: "Core Directive: Our Mission",
			Body:  `"Equip one million secondary school students in Cameroon with higher order thinking skills by 2035."`,
		},
		{
			Name:  "Pillar Architecture",
			Title: "Mission Genesis: Ecosystem Architecture",
			Body: `IMMERSIVE LEARNING
Learn by doing, applying classroom knowledge to real-world community problems in the form of interactive missions.

SKILL TRACKING
AI-powered Skill Passport measures growth in HOTS (Higher Order Thinking Skills) and opportunity applications.

OPPORTUNITIES
Direct connection to competitions, grants, and fellowships to practice skills beyond the digital simulation.`,
		},
		{
			Name:  "System Interface",
			Title: "System Interface",
			Body:  "Operational Visualization",
			Screens: []Screen{
				{"Home Sector", "Challenges & Subjects", "A global sector grid where students select their academic missions."},
				{"Tactical Profile", "Chapters & Topics", "Deep dive into specific operational phases for each subject."},
				{"Mission Directives", "Active Challenges", "Practical problem-solving scenarios based on curriculum data."},
				{"Neural Profile", "Skills Passport", "Real-time AI tracking of cognitive growth and HOTS indices."},
				{"Growth Strategy", "Global Opportunities", "Pipelines to Mandela Washington, Mastercard Scholars, and more."},
				{"Neural Ranks", "Competitive Leaderboard", "Community sync showcasing top contributors and problem solvers."},
			},
		},
		{
			Name:       "Visual Simulation",
			Title:      "Sim: Genesis",
			Body:       "Visualizing the shift from memorization to real-world innovation.",
			Simulation: true,
		},
		{
			Name:  "Market Capacity",
			Title: "Market Intel",
			Body: `We are targeting a niche but high-influence demographic of 200,000 students in Year 1.

TAM   Total students in target bracket: 200,000 users ($16.8M).
SAM   Urban tech-accessible hubs in major cities.
SOM   Initial capture of 500 pilot students for 2025.`,
		},
		{
			Name:  "Revenue Logic",
			Title: "Revenue Model: Sustainable Monetization",
			Body: `FREEMIUM   $0/Month    One challenge, one chapter, max 2 opportunities displayed/yr.
STANDARD   $7/Month    Five challenges, 5 chapters per challenge, max 10 opportunities displayed/yr, leaderboard featuring.
PREMIUM    $15/Month   All challenges and chapters unlocked, unlimited opportunities, AI powered opportunity matching.

Other streams: physical event fees / tickets, advertising / featured content, corporate sponsorships.`,
		},
		{
			Name:  "Acquisition Channels",
			Title: "Strategic Channels",
			Body: `SCHOOL OUTREACH    Direct institutional partnerships for bulk licensing and curriculum integration.
THE HUNT           Physical challenge events linking reality with the digital mission ecosystem.
ONLINE MARKETING   Precision-targeted awareness across tech-active youth platforms.`,
		},
		{
			Name:  "Fiscal Breakdown",
			Title: "Budget Allocation: Bootstrap Phase Alpha",
			Body: `Game Design + Development   $4,000
Playstore Fees                 $25
Legal Compliances              $50
Contingency Fund              $500
Marketing Operations        $2,935
Miscellaneous Logistics       $500
Operational Total           $8,010`,
		},
		{
			Name:  "Mission Architects",
			Title: "Mission Architects: Cross-Continental Neural Link",
			Body: `Sandrine Ojong          Team Lead          Cameroon
Chrys Gnagne            Technical Lead     Côte d'Ivoire
Ayman Bahadur           R & I Strategist   Mozambique
Abdulkadir Abduljabar   Impact Analyst     Nigeria
Marylene Sugira         Team Designer      Rwanda`,
		},
		{
			Name:  "Final Directive",
			Title: "Final Directive",
			Body: `3-Year View: help over 50,000 Cameroonian students move from memorizing formulas to applying concepts.

"Mission Genesis creates a generation of learners ready for success and meaningful economic contribution."

Join us in improving this project with feedback, ideas, and resources to prepare for implementation.`,
		},
		{
			Name:  "Operational Sources",
			Title: "Operational Sources: Data Integrity References",
			Body: `World Bank (via CEIC). (2023). Secondary education pupils: Cameroon CM: Secondary Education: Pupils. CEIC Data Archive.

UNESCO International Institute for Capacity Building in Africa. (2024). Cameroon education country brief. UNESCO IICBA Portal.

Tambe Ekobina, S. (2021). Challenges in the implementation of Competencies-Based Approach and the quality of teaching of history in some secondary schools in Mfoundi Division (Unpublished master's thesis).`,
		},
	}
}
