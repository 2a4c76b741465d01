package corpus

import (
	"context"

	"github.com/oscara1796/vecsearch/internal/indexer/index"
)

// sampleDocuments is the built-in seven-post corpus used when no other source
// is configured.
var sampleDocuments = []index.Document{
	{ID: "0", Text: `At Scale You Will Hit Every Performance Issue I used to think I knew a bit about performance scalability and how to keep things trucking when you hit large amounts of data Truth is I know diddly squat on the subject since the most I have ever done is read about how its done To understand how I came about realising this you need some background`},
	{ID: "1", Text: `Richard Stallman to visit Australia Im not usually one to promote events and the like unless I feel there is a genuine benefit to be had by attending but this is one stands out Richard M Stallman the guru of Free Software is coming Down Under to hold a talk You can read about him here Open Source Celebrity to visit Australia`},
	{ID: "2", Text: `MySQL Backups Done Easily One thing that comes up a lot on sites like Stackoverflow and the like is how to backup MySQL databases The first answer is usually use mysqldump This is all fine and good till you start to want to dump multiple databases You can do this all in one like using the all databases option however this makes restoring a single database an issue since you have to parse out the parts you want which can be a pain`},
	{ID: "3", Text: `Why You Shouldnt roll your own CAPTCHA At a TechEd I attended a few years ago I was watching a presentation about Security presented by Rocky Heckman read his blog its quite good In it he was talking about security algorithms The part that really stuck with me went like this`},
	{ID: "4", Text: `The Great Benefit of Test Driven Development Nobody Talks About The feeling of productivity because you are writing lots of code Think about that for a moment Ask any developer who wants to develop why they became a developer One of the first things that comes up is I enjoy writing code This is one of the things that I personally enjoy doing Writing code any code especially when its solving my current problem makes me feel productive It makes me feel like Im getting somewhere Its empowering`},
	{ID: "5", Text: `Setting up GIT to use a Subversion SVN style workflow Moving from Subversion SVN to GIT can be a little confusing at first I think the biggest thing I noticed was that GIT doesnt have a specific workflow you have to pick your own Personally I wanted to stick to my Subversion like work-flow with a central server which all my machines would pull and push too Since it took a while to set up I thought I would throw up a blog post on how to do it`},
	{ID: "6", Text: `Why CAPTCHA Never Use Numbers 0 1 5 7 Interestingly this sort of question pops up a lot in my referring search term stats Why CAPTCHAs never use the numbers 0 1 5 7 Its a relativity simple question with a reasonably simple answer Its because each of the above numbers are easy to confuse with a letter See the below`},
}

// SampleSource serves the built-in corpus.
type SampleSource struct{}

func (SampleSource) Name() string { return "sample" }

func (SampleSource) Load(ctx context.Context) ([]index.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs := make([]index.Document, len(sampleDocuments))
	copy(docs, sampleDocuments)
	return docs, nil
}

// Sample returns a copy of the built-in corpus.
func Sample() []index.Document {
	docs, _ := SampleSource{}.Load(context.Background())
	return docs
}
