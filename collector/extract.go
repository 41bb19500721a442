package collector

// cardExtractionJS selects up to MaxCards card elements and maps each to its
// href and text blob. A linkSelector of ":scope" means the card element is
// its own link. Shared by both backends so they return identical shapes.
const cardExtractionJS = `(cardSel, linkSel, textSel, max) => {
	const cards = Array.from(document.querySelectorAll(cardSel)).slice(0, max);
	return cards.map((c) => {
		const link = linkSel === ':scope' ? c : c.querySelector(linkSel);
		const href = link ? link.getAttribute('href') || '' : '';
		const node = textSel ? c.querySelector(textSel) : c;
		const text = ((node && node.innerText) || c.innerText || '').trim();
		return { href, text };
	});
}`
