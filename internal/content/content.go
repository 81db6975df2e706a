package content

// Library holds the game content the machines draw from. The embedded
// defaults keep the service self-contained; deployments swap in their own
// banks through the Config in cmd/arcaded.
type Library struct {
	TypingSamples []string
	Questions     []Question
	StoryPrompts  map[string][]string
}

// Question is one trivia entry. CorrectIndex points into Options.
type Question struct {
	ID           string
	Difficulty   string
	Text         string
	Options      []string
	CorrectIndex int
}

// Story prompt pool keys, selected by the participants' role pair.
const (
	PoolMixed    = "mixed"
	PoolSameBoy  = "same_boy"
	PoolSameGirl = "same_girl"
)

// Default returns the embedded content library.
func Default() *Library {
	return &Library{
		TypingSamples: defaultTypingSamples,
		Questions:     defaultQuestions,
		StoryPrompts:  defaultStoryPrompts,
	}
}

// SamplesWithin returns typing samples whose length is within [min, max].
// Falls back to the full bank if nothing fits.
func (l *Library) SamplesWithin(min, max int) []string {
	var out []string
	for _, s := range l.TypingSamples {
		if n := len(s); n >= min && n <= max {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return l.TypingSamples
	}
	return out
}

// QuestionsForDifficulty filters the bank; empty difficulty means all.
func (l *Library) QuestionsForDifficulty(difficulty string) []Question {
	if difficulty == "" {
		return l.Questions
	}
	var out []Question
	for _, q := range l.Questions {
		if q.Difficulty == difficulty {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return l.Questions
	}
	return out
}

// QuestionByID looks up a question in the bank.
func (l *Library) QuestionByID(id string) (Question, bool) {
	for _, q := range l.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

var defaultTypingSamples = []string{
	"The quick brown fox jumps over the lazy dog while the cat watches from the warm windowsill.",
	"A river cuts through rock not because of its power but because of its persistence over time.",
	"Typing fast is easy; typing accurately under pressure is what separates the duelists here.",
	"Every morning the baker lines up fresh loaves on the counter before the first customer knocks.",
	"Small daily improvements compound into remarkable results when you keep showing up to practice.",
	"The lighthouse keeper climbed the spiral stairs twice a night to trim the wick and watch the sea.",
	"Maps are drawings of places, but a good story is a map of people and the choices they make.",
	"Keep your eyes on the words ahead of your fingers and let the rhythm carry you to the end.",
}

var defaultQuestions = []Question{
	{ID: "q-earth-planet", Difficulty: "easy", Text: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter", "Mercury"}, CorrectIndex: 1},
	{ID: "q-ocean-largest", Difficulty: "easy", Text: "What is the largest ocean on Earth?", Options: []string{"Atlantic", "Indian", "Pacific", "Arctic"}, CorrectIndex: 2},
	{ID: "q-primes", Difficulty: "easy", Text: "Which of these is a prime number?", Options: []string{"21", "27", "31", "33"}, CorrectIndex: 2},
	{ID: "q-water-formula", Difficulty: "easy", Text: "What is the chemical formula for water?", Options: []string{"CO2", "H2O", "NaCl", "O2"}, CorrectIndex: 1},
	{ID: "q-continent-count", Difficulty: "easy", Text: "How many continents are there?", Options: []string{"five", "six", "seven", "eight"}, CorrectIndex: 2},
	{ID: "q-light-speed", Difficulty: "medium", Text: "Approximately how fast does light travel in a vacuum?", Options: []string{"300 km/s", "3,000 km/s", "30,000 km/s", "300,000 km/s"}, CorrectIndex: 3},
	{ID: "q-binary-ten", Difficulty: "medium", Text: "What is decimal 10 in binary?", Options: []string{"1001", "1010", "1100", "1110"}, CorrectIndex: 1},
	{ID: "q-everest", Difficulty: "medium", Text: "On which mountain range is Mount Everest located?", Options: []string{"Andes", "Alps", "Himalayas", "Rockies"}, CorrectIndex: 2},
	{ID: "q-dna-bases", Difficulty: "medium", Text: "How many distinct bases make up DNA?", Options: []string{"two", "three", "four", "five"}, CorrectIndex: 2},
	{ID: "q-sound-vacuum", Difficulty: "medium", Text: "What does sound need in order to travel?", Options: []string{"a vacuum", "a medium", "light", "gravity"}, CorrectIndex: 1},
	{ID: "q-hex-ff", Difficulty: "hard", Text: "What is hexadecimal FF in decimal?", Options: []string{"155", "245", "255", "265"}, CorrectIndex: 2},
	{ID: "q-halting", Difficulty: "hard", Text: "Who proved the halting problem undecidable?", Options: []string{"Church", "Turing", "Goedel", "von Neumann"}, CorrectIndex: 1},
	{ID: "q-avogadro", Difficulty: "hard", Text: "Avogadro's number is approximately?", Options: []string{"6.02e21", "6.02e22", "6.02e23", "6.02e24"}, CorrectIndex: 2},
	{ID: "q-tcp-handshake", Difficulty: "hard", Text: "How many segments are exchanged in a TCP connection handshake?", Options: []string{"one", "two", "three", "four"}, CorrectIndex: 2},
}

var defaultStoryPrompts = map[string][]string{
	PoolMixed: {
		"Two strangers find the same umbrella on a rainy platform, and neither will let go.",
		"A letter arrives forty years late, addressed to both of you.",
		"The last ferry of the season leaves in ten minutes, and only one ticket remains.",
	},
	PoolSameBoy: {
		"Two rivals from the same climbing club get snowed into the base hut overnight.",
		"The championship is tied, and the tiebreaker is an event neither of you has trained for.",
		"A garage band's only tape is stuck in a car stereo that belongs to neither of you.",
	},
	PoolSameGirl: {
		"Two cartographers discover their maps of the same coastline disagree about an island.",
		"The bakery's secret recipe is split between two heirs who have never met.",
		"A midnight radio show takes its last call from a number you both recognize.",
	},
}
